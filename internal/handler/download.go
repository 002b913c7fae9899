package handler

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"camfs/internal/model"
	"camfs/internal/volatile"
	"camfs/internal/vpath"
)

//go:embed favicon.ico
var favicon []byte

// Download serves GET /*: a listing for directory requests, the file's bytes
// otherwise.
func (c *Context) Download(w http.ResponseWriter, r *http.Request) {
	uri := requestURI(r)
	path, ok := c.resolve(w, uri)
	if !ok {
		return
	}

	if path.IsDir() {
		c.listing(w, path, vpath.Strip(uri))
		return
	}

	entry, err := c.Volume.Stat(path.Full)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.Logger.Error(`download: stat %s: %s`, path.Full, err)
			http.Error(w, `Failed to read existing file`, http.StatusInternalServerError)
			return
		}
		switch path.Suffix {
		case `/index.html`:
			w.Header().Set(`Location`, `/`)
			w.WriteHeader(http.StatusTemporaryRedirect)
		case `/favicon.ico`:
			c.favicon(w)
		default:
			c.Logger.Debug(`download: %s does not exist`, path.Full)
			http.Error(w, `File does not exist`, http.StatusNotFound)
		}
		return
	}
	if entry.IsDir() {
		http.Redirect(w, r, vpath.Strip(uri)+`/`, http.StatusMovedPermanently)
		return
	}

	c.send(w, path, entry)
}

// requestURI is the request target as the client sent it, so a raw '?' or
// '#' is still there to be cut by the resolver.
func requestURI(r *http.Request) string {
	if strings.HasPrefix(r.RequestURI, `/`) {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

// resolve maps uri below BasePath, answering the request itself on failure.
func (c *Context) resolve(w http.ResponseWriter, uri string) (vpath.Path, bool) {
	path, err := vpath.Resolve(c.BasePath, uri, c.PathMax)
	switch {
	case err == nil:
		return path, true
	case errors.Is(err, model.ErrPathTooLong):
		c.Logger.Error(`resolve: %s`, err)
		http.Error(w, `Filename too long`, http.StatusInternalServerError)
	default:
		c.Logger.Warn(`resolve: %s`, err)
		http.Error(w, `Invalid filename`, http.StatusBadRequest)
	}
	return vpath.Path{}, false
}

func (c *Context) favicon(w http.ResponseWriter) {
	data, mime := favicon, `image/x-icon`
	if entry, err := c.Assets.At(`/favicon.ico`); err == nil {
		data = entry.Data
		if entry.Mime != `` {
			mime = entry.Mime
		}
	}
	w.Header().Set(`Content-Type`, mime)
	w.Header().Set(`Content-Length`, fmt.Sprintf(`%d`, len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// send copies the file in scratch-sized chunks, flushing each one so the
// body goes out chunked. Once the first chunk is out the status is fixed;
// later failures end the body early and are only logged.
func (c *Context) send(w http.ResponseWriter, path vpath.Path, entry model.Entry) {
	file, err := c.Volume.Open(path.Full)
	if err != nil {
		c.Logger.Error(`download: open %s: %s`, path.Full, err)
		http.Error(w, `Failed to read existing file`, http.StatusInternalServerError)
		return
	}
	defer file.Close()

	c.Logger.Info(`download: sending %s (%s)`, path.Name(), humanize.IBytes(uint64(entry.Size)))
	w.Header().Set(`Content-Type`, volatile.Magic().Zap(path.Suffix))

	buffer := c.Pool.Get()
	defer c.Pool.Put(buffer)
	chunk := *buffer

	writer := newChunkWriter(w)
	writer.deadline = c.ChunkTimeout
	var sent int64
	for {
		n, rerr := file.Read(chunk)
		if n > 0 {
			if err := writer.write(chunk[:n]); err != nil {
				c.Logger.Error(`download: %s after %d bytes: %s`, path.Name(), sent, err)
				c.Metrics.Downloaded.Add(float64(sent))
				return
			}
			sent += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			c.Logger.Error(`download: read %s after %d bytes: %s`, path.Name(), sent, rerr)
			if sent == 0 {
				http.Error(w, `Failed to read existing file`, http.StatusInternalServerError)
			}
			c.Metrics.Downloaded.Add(float64(sent))
			return
		}
	}
	if sent == 0 {
		w.WriteHeader(http.StatusOK)
	}
	c.Metrics.Downloaded.Add(float64(sent))
	c.Logger.Debug(`download: %s complete`, path.Name())
}

// chunkWriter writes and flushes one chunk at a time. Flushing is skipped on
// writers that cannot flush. A non-zero deadline renews the connection's
// write deadline before every chunk, replacing the server-wide one.
type chunkWriter struct {
	w          io.Writer
	controller *http.ResponseController
	deadline   time.Duration
}

func newChunkWriter(w http.ResponseWriter) chunkWriter {
	return chunkWriter{w: w, controller: http.NewResponseController(w)}
}

func (writer chunkWriter) write(p []byte) error {
	if writer.deadline > 0 {
		err := writer.controller.SetWriteDeadline(time.Now().Add(writer.deadline))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf(`%w: deadline: %w`, model.ErrWriteFailed, err)
		}
	}
	if _, err := writer.w.Write(p); err != nil {
		return fmt.Errorf(`%w: %w`, model.ErrWriteFailed, err)
	}
	if err := writer.controller.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf(`%w: flush: %w`, model.ErrWriteFailed, err)
	}
	return nil
}
