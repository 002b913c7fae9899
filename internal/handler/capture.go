package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const captureNameFormat = `20060102-150405.000`

// Capture serves POST /capture: one frame is stored as a .jpeg below
// CaptureDir and the client is sent to that directory's listing.
func (c *Context) Capture(w http.ResponseWriter, r *http.Request) {
	frame, err := c.Camera.Capture(r.Context())
	if err != nil || frame.Len() == 0 {
		frame.Release()
		c.Logger.Error(`capture: %v`, err)
		http.Error(w, `Failed to capture image`, http.StatusServiceUnavailable)
		return
	}
	defer frame.Release()

	if frame.Len() > c.MaxFileSize {
		c.Logger.Warn(`capture: frame of %d bytes exceeds %d`, frame.Len(), c.MaxFileSize)
		http.Error(w, `Frame too large`, http.StatusRequestEntityTooLarge)
		return
	}

	dir := `/` + strings.Trim(c.CaptureDir, `/`) + `/`
	name := time.Now().In(c.Location).Format(captureNameFormat) + `.jpeg`
	path, ok := c.resolve(w, (&url.URL{Path: dir + name}).EscapedPath())
	if !ok {
		return
	}

	if err := c.Volume.MkdirAll(c.BasePath + dir); err != nil {
		c.Logger.Error(`capture: mkdir %s: %s`, dir, err)
		http.Error(w, `Failed to store image`, http.StatusInternalServerError)
		return
	}
	if err := c.Volume.WriteFile(path.Full, frame.Data); err != nil {
		c.Logger.Error(`capture: write %s: %s`, path.Full, err)
		http.Error(w, `Failed to store image`, http.StatusInternalServerError)
		return
	}
	c.Metrics.Captured.Inc()
	c.Logger.Audit(`capture: %s (%d bytes)`, path.Full, frame.Len())

	w.Header().Set(`Location`, dir)
	w.Header().Set(`Content-Type`, `text/plain; charset=utf-8`)
	w.WriteHeader(http.StatusSeeOther)
	w.Write([]byte(path.Suffix))
}
