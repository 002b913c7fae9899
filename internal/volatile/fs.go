package volatile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"camfs/internal/model"
)

// Fs is an in-memory model.Volume. Directories exist explicitly; files need
// their parent directory to exist, as on a real volume.
type Fs struct {
	mu   *sync.RWMutex
	root map[string]FsEntry
	dirs map[string]time.Time
}

type FsEntry struct {
	Name string
	When time.Time
	Mime string
	Data []byte
}

var _ model.Volume = Fs{}

func NewFs() Fs {
	fs := Fs{
		mu:   &sync.RWMutex{},
		root: map[string]FsEntry{},
		dirs: map[string]time.Time{`/`: time.Now().UTC()},
	}
	return fs
}

func clean(target string) string {
	return path.Clean(`/` + target)
}

func (fs Fs) Len() int {
	if fs.mu == nil {
		return 0
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.root)
}

// FromFile copies a host file into target; wand inspects the data and names
// its content type.
func (fs Fs) FromFile(target string, name string, wand func([]byte) (string, error)) error {
	target = clean(target)
	if _, err := fs.At(target); err == nil {
		return fmt.Errorf(`path "%s" already exists`, target)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	mime, err := wand(data)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(path.Dir(target)); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.root[target] = FsEntry{
		Name: path.Base(target),
		When: time.Now().UTC(),
		Mime: mime,
		Data: data,
	}
	return nil
}

func (fs Fs) At(target string) (FsEntry, error) {
	if fs.mu == nil {
		return FsEntry{}, fmt.Errorf(`path "%s" not found`, target)
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if entry, ok := fs.root[clean(target)]; !ok {
		return FsEntry{}, fmt.Errorf(`path "%s" not found`, target)
	} else {
		return entry, nil
	}
}

func (entry FsEntry) ReadCloser() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(entry.Data))
}

func (fs Fs) Stat(target string) (model.Entry, error) {
	target = clean(target)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if when, ok := fs.dirs[target]; ok {
		return model.Entry{Name: path.Base(target), Kind: model.KindDirectory, Modified: when}, nil
	}
	if entry, ok := fs.root[target]; ok {
		return model.Entry{Name: entry.Name, Kind: model.KindFile, Size: int64(len(entry.Data)), Modified: entry.When}, nil
	}
	return model.Entry{}, &os.PathError{Op: `stat`, Path: target, Err: os.ErrNotExist}
}

func (fs Fs) Open(target string) (io.ReadCloser, error) {
	target = clean(target)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if _, ok := fs.dirs[target]; ok {
		return nil, &os.PathError{Op: `open`, Path: target, Err: os.ErrInvalid}
	}
	entry, ok := fs.root[target]
	if !ok {
		return nil, &os.PathError{Op: `open`, Path: target, Err: os.ErrNotExist}
	}
	return entry.ReadCloser(), nil
}

func (fs Fs) ReadDir(target string) ([]model.DirEntry, error) {
	target = clean(target)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if _, ok := fs.dirs[target]; !ok {
		return nil, &os.PathError{Op: `readdir`, Path: target, Err: os.ErrNotExist}
	}
	prefix := strings.TrimSuffix(target, `/`) + `/`
	entries := []model.DirEntry{}
	for name := range fs.dirs {
		if child, ok := childOf(prefix, name); ok {
			entries = append(entries, model.DirEntry{Name: child, Kind: model.KindDirectory})
		}
	}
	for name := range fs.root {
		if child, ok := childOf(prefix, name); ok {
			entries = append(entries, model.DirEntry{Name: child, Kind: model.KindFile})
		}
	}
	sort.Slice(entries, func(one int, two int) bool {
		return entries[one].Name < entries[two].Name
	})
	return entries, nil
}

func childOf(prefix string, name string) (string, bool) {
	if name == `/` || !strings.HasPrefix(name, prefix) {
		return ``, false
	}
	rest := name[len(prefix):]
	if rest == `` || strings.Contains(rest, `/`) {
		return ``, false
	}
	return rest, true
}

func (fs Fs) Remove(target string) error {
	target = clean(target)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.root[target]; ok {
		delete(fs.root, target)
		return nil
	}
	if _, ok := fs.dirs[target]; ok && target != `/` {
		prefix := target + `/`
		for name := range fs.root {
			if strings.HasPrefix(name, prefix) {
				return &os.PathError{Op: `remove`, Path: target, Err: os.ErrExist}
			}
		}
		for name := range fs.dirs {
			if strings.HasPrefix(name, prefix) {
				return &os.PathError{Op: `remove`, Path: target, Err: os.ErrExist}
			}
		}
		delete(fs.dirs, target)
		return nil
	}
	return &os.PathError{Op: `remove`, Path: target, Err: os.ErrNotExist}
}

func (fs Fs) WriteFile(target string, data []byte) error {
	target = clean(target)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.dirs[path.Dir(target)]; !ok {
		return &os.PathError{Op: `open`, Path: target, Err: os.ErrNotExist}
	}
	if _, ok := fs.dirs[target]; ok {
		return &os.PathError{Op: `open`, Path: target, Err: os.ErrInvalid}
	}
	fs.root[target] = FsEntry{
		Name: path.Base(target),
		When: time.Now().UTC(),
		Mime: Magic().Zap(target),
		Data: bytes.Clone(data),
	}
	return nil
}

func (fs Fs) ReadFile(target string) ([]byte, error) {
	entry, err := fs.At(target)
	if err != nil {
		return nil, &os.PathError{Op: `open`, Path: target, Err: os.ErrNotExist}
	}
	return bytes.Clone(entry.Data), nil
}

func (fs Fs) MkdirAll(target string) error {
	target = clean(target)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for dir := target; ; dir = path.Dir(dir) {
		if _, ok := fs.root[dir]; ok {
			return &os.PathError{Op: `mkdir`, Path: dir, Err: os.ErrExist}
		}
		if _, ok := fs.dirs[dir]; !ok {
			fs.dirs[dir] = time.Now().UTC()
		}
		if dir == `/` {
			return nil
		}
	}
}
