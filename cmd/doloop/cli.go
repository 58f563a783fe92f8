package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/myerscreative/doloop-sub000/internal/localstore"
	"github.com/myerscreative/doloop-sub000/internal/loop"
	"github.com/myerscreative/doloop-sub000/internal/models"
)

const usageText = `usage: doloop <command> [arguments]

commands:
  list                    list loops
  add <title> [task ...]  create a loop with the given tasks
  show <loop>             show a loop's tasks
  check <loop> <task>     toggle a task done or not done
  reloop <loop>           clear recurring tasks for the next cycle
  reset <loop>            clear every task and the loop's streak
  rm <loop>               delete a loop
  folders                 list library folders and their loop counts

a <loop> is its id or its title; a <task> is its id or its title.
`

// run dispatches a doloop invocation against the local store. The clock is
// injected so reloop and reset behave deterministically under test.
func run(args []string, a *localstore.Adapter, out io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		fmt.Fprint(out, usageText)
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return runList(rest, a, out)
	case "add":
		return runAdd(rest, a, out, now)
	case "show":
		return runShow(rest, a, out)
	case "check":
		return runCheck(rest, a, out, now)
	case "reloop":
		return runLifecycle(rest, a, out, loop.Reloop, "relooped", now)
	case "reset":
		return runLifecycle(rest, a, out, loop.Reset, "reset", now)
	case "rm":
		return runRemove(rest, a, out)
	case "folders":
		return runFolders(a, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usageText)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try: doloop help)", cmd)
	}
}

func runList(args []string, a *localstore.Adapter, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	folderID := fs.String("folder", "", "only loops matching this folder")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		loops []models.Loop
		err   error
	)
	if *folderID != "" {
		loops, err = a.LoopsInFolder(*folderID)
	} else {
		loops, err = a.Loops()
	}
	if err != nil {
		return err
	}

	if len(loops) == 0 {
		fmt.Fprintln(out, "no loops")
		return nil
	}
	for _, l := range loops {
		marker := " "
		if loop.IsComplete(l) {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-36s  %d/%d  streak %d  %s\n",
			marker, l.ID, l.CompletedTasks, l.TotalTasks, l.CurrentStreak, l.Title)
	}
	return nil
}

func runAdd(args []string, a *localstore.Adapter, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	color := fs.String("color", "teal", "loop color")
	loopType := fs.String("type", "personal", "loop type: personal, work, daily, shared")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("add: missing loop title")
	}
	if !models.ValidLoopType(*loopType) {
		return fmt.Errorf("add: invalid loop type %q", *loopType)
	}

	ts := now()
	l := models.Loop{
		ID:        uuid.New().String(),
		Title:     fs.Arg(0),
		Type:      models.LoopType(*loopType),
		Color:     *color,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	for i, title := range fs.Args()[1:] {
		l.Items = append(l.Items, models.LoopItem{
			ID:          uuid.New().String(),
			Title:       title,
			Order:       i,
			IsRecurring: true,
		})
	}
	models.RecountLoop(&l)

	if err := a.AddLoop(l); err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s (%s)\n", l.Title, l.ID)
	return nil
}

func runShow(args []string, a *localstore.Adapter, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("show: expected one loop")
	}
	l, err := findLoop(a, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s  [%s/%s]  %d/%d done  streak %d (best %d)\n",
		l.Title, l.Type, l.Color, l.CompletedTasks, l.TotalTasks, l.CurrentStreak, l.LongestStreak)
	for _, it := range l.Items {
		box := "[ ]"
		if it.Completed {
			box = "[x]"
		}
		suffix := ""
		if !it.IsRecurring {
			suffix = "  (one-time)"
		}
		fmt.Fprintf(out, "  %s %s  %s%s\n", box, it.ID, it.Title, suffix)
	}
	return nil
}

func runCheck(args []string, a *localstore.Adapter, out io.Writer, now func() time.Time) error {
	if len(args) != 2 {
		return fmt.Errorf("check: expected a loop and a task")
	}
	l, err := findLoop(a, args[0])
	if err != nil {
		return err
	}

	itemID := ""
	for _, it := range l.Items {
		if it.ID == args[1] || strings.EqualFold(it.Title, args[1]) {
			itemID = it.ID
			break
		}
	}
	if itemID == "" {
		return fmt.Errorf("no task %q in loop %q", args[1], l.Title)
	}

	l = loop.ToggleItem(l, itemID, now())
	if err := a.UpdateLoop(l); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d/%d done\n", l.Title, l.CompletedTasks, l.TotalTasks)
	if loop.IsComplete(l) {
		fmt.Fprintf(out, "loop complete, reloop to start the next cycle\n")
	}
	return nil
}

func runLifecycle(args []string, a *localstore.Adapter, out io.Writer, transform func(models.Loop, time.Time) models.Loop, verb string, now func() time.Time) error {
	if len(args) != 1 {
		return fmt.Errorf("%s: expected one loop", verb)
	}
	l, err := findLoop(a, args[0])
	if err != nil {
		return err
	}

	l = transform(l, now())
	if err := a.UpdateLoop(l); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s: %d tasks remain\n", verb, l.Title, l.TotalTasks)
	return nil
}

func runRemove(args []string, a *localstore.Adapter, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("rm: expected one loop")
	}
	l, err := findLoop(a, args[0])
	if err != nil {
		return err
	}
	if err := a.DeleteLoop(l.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %s\n", l.Title)
	return nil
}

func runFolders(a *localstore.Adapter, out io.Writer) error {
	folders, err := a.Folders()
	if err != nil {
		return err
	}
	for _, f := range folders {
		loops, err := a.LoopsInFolder(f.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-36s  %-12s  %d loops\n", f.ID, f.Name, len(loops))
	}
	return nil
}

// findLoop resolves a loop by id first, then by case-insensitive title.
func findLoop(a *localstore.Adapter, ref string) (models.Loop, error) {
	l, ok, err := a.LoopByID(ref)
	if err != nil {
		return models.Loop{}, err
	}
	if ok {
		return l, nil
	}

	loops, err := a.Loops()
	if err != nil {
		return models.Loop{}, err
	}
	for _, l := range loops {
		if strings.EqualFold(l.Title, ref) {
			return l, nil
		}
	}
	return models.Loop{}, fmt.Errorf("no loop %q", ref)
}
