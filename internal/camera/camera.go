// Package camera provides the frame sources behind the MJPEG stream: a
// synthetic test pattern and a replay of JPEG files from a directory.
package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"camfs/internal/model"
)

const (
	DefaultWidth   = 640
	DefaultHeight  = 480
	DefaultQuality = 80
)

// buffers recycles encode buffers between frames so a steady stream settles
// on a fixed set of allocations.
var buffers = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// encode compresses img into a pooled buffer and wraps it in a Frame whose
// Release hands the buffer back.
func encode(ctx context.Context, img image.Image, quality int) (*model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buffer := buffers.Get().(*bytes.Buffer)
	buffer.Reset()
	if err := jpeg.Encode(buffer, img, &jpeg.Options{Quality: quality}); err != nil {
		buffers.Put(buffer)
		return nil, fmt.Errorf(`%w: jpeg: %w`, model.ErrCaptureFailed, err)
	}
	return model.NewFrame(buffer.Bytes(), func([]byte) {
		buffers.Put(buffer)
	}), nil
}

// fromBytes copies data into a pooled buffer.
func fromBytes(data []byte) *model.Frame {
	buffer := buffers.Get().(*bytes.Buffer)
	buffer.Reset()
	buffer.Write(data)
	return model.NewFrame(buffer.Bytes(), func([]byte) {
		buffers.Put(buffer)
	})
}
