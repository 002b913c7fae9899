package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"camfs/internal/control"
	"camfs/internal/model"
	"camfs/internal/volatile"
)

const testBase = "/sdcard"

// scriptedCamera returns one scripted result per Capture and counts the
// releases of the frames it handed out.
type scriptedCamera struct {
	mu       sync.Mutex
	script   []error
	frame    []byte
	captures int
	released int
}

var errScripted = errors.New("sensor timeout")

func (camera *scriptedCamera) Capture(ctx context.Context) (*model.Frame, error) {
	camera.mu.Lock()
	defer camera.mu.Unlock()
	if camera.captures >= len(camera.script) {
		return nil, errScripted
	}
	err := camera.script[camera.captures]
	camera.captures++
	if err != nil {
		return nil, err
	}
	return model.NewFrame(bytes.Clone(camera.frame), func([]byte) {
		camera.mu.Lock()
		camera.released++
		camera.mu.Unlock()
	}), nil
}

func (camera *scriptedCamera) counts() (int, int) {
	camera.mu.Lock()
	defer camera.mu.Unlock()
	return camera.captures, camera.released
}

// spyVolume counts Open calls and bytes read through the wrapped volume.
type spyVolume struct {
	volatile.Fs
	mu    sync.Mutex
	opens int
	read  int
}

func (vol *spyVolume) Open(path string) (io.ReadCloser, error) {
	vol.mu.Lock()
	vol.opens++
	vol.mu.Unlock()
	reader, err := vol.Fs.Open(path)
	if err != nil {
		return nil, err
	}
	return spyReader{ReadCloser: reader, vol: vol}, nil
}

type spyReader struct {
	io.ReadCloser
	vol *spyVolume
}

func (reader spyReader) Read(p []byte) (int, error) {
	n, err := reader.ReadCloser.Read(p)
	reader.vol.mu.Lock()
	reader.vol.read += n
	reader.vol.mu.Unlock()
	return n, err
}

// brokenWriter accepts ok writes and fails every write after that.
type brokenWriter struct {
	header http.Header
	ok     int
	writes int
	status int
	body   bytes.Buffer
}

func newBrokenWriter(ok int) *brokenWriter {
	return &brokenWriter{header: http.Header{}, ok: ok}
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	if w.writes >= w.ok {
		return 0, errors.New("broken pipe")
	}
	w.writes++
	return w.body.Write(p)
}

func (w *brokenWriter) Flush() {}

func newTestContext(t *testing.T, vol model.Volume, camera model.Camera) *Context {
	t.Helper()
	c := &Context{
		BasePath:      testBase,
		PathMax:       64,
		FrameInterval: time.Millisecond,
		Volume:        vol,
		Camera:        camera,
		Logger:        volatile.NewLoggerTo(io.Discard, control.LogLevelNone),
	}
	return c.Defaults()
}

func newTestFs(t *testing.T, files map[string]string) volatile.Fs {
	t.Helper()
	fs := volatile.NewFs()
	if err := fs.MkdirAll(testBase); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := fs.MkdirAll(testBase + name[:strings.LastIndex(name, "/")+1]); err != nil {
			t.Fatal(err)
		}
		if err := fs.WriteFile(testBase+name, []byte(data)); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func serve(handler http.HandlerFunc, method string, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func httptestRequest(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}
