package model

import (
	"context"
	"sync"
)

type Camera interface {
	Capture(ctx context.Context) (*Frame, error)
}

// Frame is one encoded JPEG image. The receiver of a Frame owns it until
// Release is called; Release is safe to call more than once.
type Frame struct {
	Data []byte

	once    sync.Once
	release func([]byte)
}

func NewFrame(data []byte, release func([]byte)) *Frame {
	return &Frame{Data: data, release: release}
}

func (frame *Frame) Len() int {
	if frame == nil {
		return 0
	}
	return len(frame.Data)
}

func (frame *Frame) Release() {
	if frame == nil {
		return
	}
	frame.once.Do(func() {
		if frame.release != nil {
			frame.release(frame.Data)
		}
		frame.Data = nil
	})
}
