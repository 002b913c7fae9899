package handler

import (
	"sync"
	"time"

	"camfs/internal/control"
	"camfs/internal/model"
	"camfs/internal/oe"
	"camfs/internal/volatile"
)

const (
	ScratchSize          = 8 * 1024
	DefaultPathMax       = 512
	DefaultFrameInterval = 33 * time.Millisecond
	DefaultMaxFileSize   = 200 * 1024
	DefaultCaptureDir    = `captures`
	DefaultChunkTimeout  = 30 * time.Second
)

// Context is the state shared by every responder of one server. It is built
// once at start and read-only afterwards; per-request scratch space comes
// from Pool.
type Context struct {
	BasePath      string
	PathMax       int
	ListBudget    int
	CaptureDir    string
	MaxFileSize   int
	FrameInterval time.Duration
	ChunkTimeout  time.Duration
	Location      *time.Location

	Volume  model.Volume
	Camera  model.Camera
	Assets  volatile.Fs
	Logger  control.Logger
	Metrics *Metrics
	Pool    *Pool
}

// Defaults fills every unset tunable.
func (c *Context) Defaults() *Context {
	if c.PathMax <= 0 {
		c.PathMax = DefaultPathMax
	}
	if c.ListBudget <= 0 {
		c.ListBudget = oe.DefaultListBudget
	}
	if c.CaptureDir == `` {
		c.CaptureDir = DefaultCaptureDir
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = DefaultChunkTimeout
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil)
	}
	if c.Pool == nil {
		c.Pool = NewPool(ScratchSize)
	}
	return c
}

// Pool hands out fixed-size scratch buffers. A buffer belongs to exactly one
// request between Get and Put.
type Pool struct {
	size int
	pool sync.Pool
}

func NewPool(size int) *Pool {
	pool := &Pool{size: size}
	pool.pool.New = func() any {
		buffer := make([]byte, size)
		return &buffer
	}
	return pool
}

func (pool *Pool) Size() int {
	return pool.size
}

func (pool *Pool) Get() *[]byte {
	return pool.pool.Get().(*[]byte)
}

func (pool *Pool) Put(buffer *[]byte) {
	if buffer == nil || len(*buffer) != pool.size {
		return
	}
	pool.pool.Put(buffer)
}
