package oe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"camfs/internal/model"
)

// FsDriver is the host-filesystem model.Volume. Every path it touches must lie
// below base.
type FsDriver struct {
	base string
}

var _ model.Volume = (*FsDriver)(nil)

func NewFsDriver(base string) FsDriver {
	if len(base) > 1 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	fs := FsDriver{
		base: filepath.Clean(base),
	}
	return fs
}

func (fs FsDriver) Base() string {
	return fs.base
}

func (fs FsDriver) target(path string) (string, error) {
	target := filepath.Clean(path)
	if target != fs.base && !strings.HasPrefix(target, strings.TrimSuffix(fs.base, string(filepath.Separator))+string(filepath.Separator)) {
		return ``, fmt.Errorf(`%w: %s`, model.ErrPathEscape, path)
	}
	return target, nil
}

func (fs FsDriver) Stat(path string) (model.Entry, error) {
	target, err := fs.target(path)
	if err != nil {
		return model.Entry{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return model.Entry{}, err
	}
	entry := model.Entry{
		Name:     info.Name(),
		Kind:     model.KindFile,
		Size:     info.Size(),
		Modified: info.ModTime(),
	}
	if info.IsDir() {
		entry.Kind = model.KindDirectory
		entry.Size = 0
	}
	return entry, nil
}

func (fs FsDriver) Open(path string) (io.ReadCloser, error) {
	target, err := fs.target(path)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}

func (fs FsDriver) ReadDir(path string) ([]model.DirEntry, error) {
	target, err := fs.target(path)
	if err != nil {
		return nil, err
	}
	list, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	entries := make([]model.DirEntry, len(list))
	for i, info := range list {
		entries[i] = model.DirEntry{Name: info.Name(), Kind: model.KindFile}
		if info.IsDir() {
			entries[i].Kind = model.KindDirectory
		}
	}
	return entries, nil
}

func (fs FsDriver) Remove(path string) error {
	target, err := fs.target(path)
	if err != nil {
		return err
	}
	return os.Remove(target)
}

// WriteFile replaces path with data through a temporary file in the same
// directory, so readers never see a partial file.
func (fs FsDriver) WriteFile(path string, data []byte) error {
	target, err := fs.target(path)
	if err != nil {
		return err
	}
	file, err := os.CreateTemp(filepath.Dir(target), `.camfs-*`)
	if err != nil {
		return err
	}
	name := file.Name()
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(name)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, target); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

func (fs FsDriver) ReadFile(path string) ([]byte, error) {
	target, err := fs.target(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

func (fs FsDriver) MkdirAll(path string) error {
	target, err := fs.target(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(target, 0o755)
}
