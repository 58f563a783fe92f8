// Command doloop is the offline companion to doloopd. It keeps loops in a
// local data directory instead of the service database, for working through
// checklists from a terminal without a running server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/config"
	"github.com/myerscreative/doloop-sub000/internal/localstore"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	kv, err := localstore.NewFileKV(cfg.LocalDataDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.LocalDataDir).Msg("failed to open local data dir")
	}

	adapter := localstore.NewAdapter(kv, logger)

	if err := run(os.Args[1:], adapter, os.Stdout, time.Now); err != nil {
		fmt.Fprintln(os.Stderr, "doloop:", err)
		os.Exit(1)
	}
}
