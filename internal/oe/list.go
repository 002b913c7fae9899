package oe

import (
	"fmt"
	"path"

	"camfs/internal/control"
	"camfs/internal/model"
)

// ReservedName is the volume metadata directory FAT formatters leave behind.
const ReservedName = `System Volume Information`

const listInitialCap = 8

// DefaultListBudget bounds the number of entries one listing may hold.
const DefaultListBudget = 4096

// List returns the entries of dir in the volume's native order. budget caps
// the entry count; a listing that would outgrow it fails as a whole with
// model.ErrOutOfMemory.
func List(vol model.Volume, dir string, includeDirs bool, budget int, logger control.Logger) ([]model.Entry, error) {
	list, err := vol.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf(`%w: %s: %w`, model.ErrOpenFailed, dir, err)
	}
	if budget <= 0 {
		budget = DefaultListBudget
	}
	entries := make([]model.Entry, 0, min(listInitialCap, budget))
	for _, item := range list {
		if !includeDirs && item.Kind == model.KindDirectory {
			continue
		}
		switch item.Name {
		case `.`, `..`, ReservedName:
			continue
		}
		info, err := vol.Stat(path.Join(dir, item.Name))
		if err != nil {
			logger.Warn(`list: stat %s %s: %s`, item.Kind, item.Name, err)
			continue
		}
		if len(entries) == cap(entries) {
			if cap(entries) >= budget {
				return nil, fmt.Errorf(`%w: %s holds more than %d entries`, model.ErrOutOfMemory, dir, budget)
			}
			grown := make([]model.Entry, len(entries), min(cap(entries)*2, budget))
			copy(grown, entries)
			entries = grown
		}
		entries = append(entries, model.Entry{
			Name:     item.Name,
			Kind:     item.Kind,
			Size:     info.Size,
			Modified: info.Modified,
		})
	}
	logger.Debug(`list: %d entries in %s`, len(entries), dir)
	return entries, nil
}
