package localstore

import (
	"encoding/json"
	"fmt"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// defaultFolders are seeded on first read. They are marked non-deletable.
func defaultFolders() []models.LibraryFolder {
	return []models.LibraryFolder{
		{ID: "folder-favorites", Name: "Favorites", Color: "gold", Order: 0, IsDefault: true, FilterType: models.FilterFavorites},
		{ID: "folder-personal", Name: "Personal", Color: "teal", Order: 1, IsDefault: true, FilterType: models.FilterPersonal},
		{ID: "folder-work", Name: "Work", Color: "indigo", Order: 2, IsDefault: true, FilterType: models.FilterWork},
		{ID: "folder-shared", Name: "Shared", Color: "coral", Order: 3, IsDefault: true, FilterType: models.FilterShared},
	}
}

// Folders returns the stored folder collection, seeding the four default
// folders when nothing is stored yet. A corrupt blob degrades to the
// defaults rather than failing the read.
func (a *Adapter) Folders() ([]models.LibraryFolder, error) {
	blob, ok, err := a.kv.Get(KeyFolders)
	if err != nil {
		return nil, err
	}
	if !ok {
		seeded := defaultFolders()
		if err := a.writeFolders(seeded); err != nil {
			return nil, err
		}
		return seeded, nil
	}

	var folders []models.LibraryFolder
	if err := json.Unmarshal(blob, &folders); err != nil {
		a.logger.Error().Err(err).Msg("folder collection is not valid JSON, reseeding defaults")
		seeded := defaultFolders()
		if err := a.writeFolders(seeded); err != nil {
			return nil, err
		}
		return seeded, nil
	}
	return folders, nil
}

// FolderByID returns the folder with the given id, or ok=false.
func (a *Adapter) FolderByID(id string) (models.LibraryFolder, bool, error) {
	folders, err := a.Folders()
	if err != nil {
		return models.LibraryFolder{}, false, err
	}
	for _, f := range folders {
		if f.ID == id {
			return f, true, nil
		}
	}
	return models.LibraryFolder{}, false, nil
}

// AddFolder appends a folder and rewrites the collection.
func (a *Adapter) AddFolder(f models.LibraryFolder) error {
	folders, err := a.Folders()
	if err != nil {
		return err
	}
	return a.writeFolders(append(folders, f))
}

// UpdateFolder replaces the stored folder with the same id.
func (a *Adapter) UpdateFolder(f models.LibraryFolder) error {
	folders, err := a.Folders()
	if err != nil {
		return err
	}
	for i := range folders {
		if folders[i].ID == f.ID {
			folders[i] = f
		}
	}
	return a.writeFolders(folders)
}

// DeleteFolder removes the folder with the given id. Default folders cannot
// be deleted.
func (a *Adapter) DeleteFolder(id string) error {
	folders, err := a.Folders()
	if err != nil {
		return err
	}
	kept := folders[:0]
	for _, f := range folders {
		if f.ID == id && f.IsDefault {
			return fmt.Errorf("folder %s is a default folder and cannot be deleted", id)
		}
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	return a.writeFolders(kept)
}

// LoopsInFolder applies the folder's saved filter over the loop set.
func (a *Adapter) LoopsInFolder(folderID string) ([]models.Loop, error) {
	folder, ok, err := a.FolderByID(folderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("folder %s not found", folderID)
	}
	loops, err := a.Loops()
	if err != nil {
		return nil, err
	}
	matched := make([]models.Loop, 0, len(loops))
	for _, l := range loops {
		if folder.Matches(l) {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

func (a *Adapter) writeFolders(folders []models.LibraryFolder) error {
	blob, err := json.Marshal(folders)
	if err != nil {
		return err
	}
	return a.kv.Set(KeyFolders, blob)
}
