package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"camfs/internal/model"
)

// Replay cycles through the JPEG files of a directory. Files are decoded once
// at load and, when a size is configured, scaled to it.
type Replay struct {
	frames [][]byte

	mu   sync.Mutex
	next int
}

var _ model.Camera = (*Replay)(nil)

func NewReplay(dir string, width int, height int) (*Replay, error) {
	list, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, info := range list {
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case `.jpg`, `.jpeg`:
			if !info.IsDir() {
				names = append(names, info.Name())
			}
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf(`replay: no jpeg files in %s`, dir)
	}

	replay := &Replay{}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if width > 0 && height > 0 {
			if data, err = scale(data, width, height); err != nil {
				return nil, fmt.Errorf(`replay: %s: %w`, name, err)
			}
		}
		replay.frames = append(replay.frames, data)
	}
	return replay, nil
}

func (replay *Replay) Len() int {
	return len(replay.frames)
}

func (replay *Replay) Capture(ctx context.Context) (*model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	replay.mu.Lock()
	data := replay.frames[replay.next]
	replay.next = (replay.next + 1) % len(replay.frames)
	replay.mu.Unlock()
	return fromBytes(data), nil
}

func scale(data []byte, width int, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return data, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	frame, err := encode(context.Background(), dst, DefaultQuality)
	if err != nil {
		return nil, err
	}
	defer frame.Release()
	return bytes.Clone(frame.Data), nil
}
