package handler

import (
	"errors"
	"fmt"
	"net/http"

	"camfs/internal/model"
	"camfs/internal/vpath"
)

// DeletePrefix is the route prefix of the delete responder. Listing pages
// build their delete forms from it.
const DeletePrefix = `/delete`

// Delete serves POST /delete/*. Only regular files are removed.
func (c *Context) Delete(w http.ResponseWriter, r *http.Request) {
	path, ok := c.resolve(w, vpath.Trim(requestURI(r), DeletePrefix))
	if !ok {
		return
	}
	if path.Suffix == `` || path.IsDir() {
		c.Logger.Warn(`delete: invalid filename %q`, path.Suffix)
		http.Error(w, `Invalid filename`, http.StatusInternalServerError)
		return
	}

	switch err := c.deletable(path); {
	case errors.Is(err, model.ErrNotFound):
		c.Logger.Warn(`delete: %s`, err)
		http.Error(w, `File does not exist`, http.StatusBadRequest)
		return
	case err != nil:
		c.Logger.Warn(`delete: %s`, err)
		http.Error(w, `Invalid filename`, http.StatusInternalServerError)
		return
	}

	if err := c.Volume.Remove(path.Full); err != nil {
		c.Logger.Error(`delete: %s: %s`, path.Full, err)
		http.Error(w, `Failed to delete file`, http.StatusInternalServerError)
		return
	}
	c.Metrics.Deleted.Inc()
	c.Logger.Audit(`delete: %s`, path.Full)

	w.Header().Set(`Location`, `/`)
	w.Header().Set(`Content-Type`, `text/plain; charset=utf-8`)
	w.WriteHeader(http.StatusSeeOther)
	w.Write([]byte(`File deleted successfully`))
}

// deletable reports whether path names an existing regular file.
func (c *Context) deletable(path vpath.Path) error {
	entry, err := c.Volume.Stat(path.Full)
	if err != nil {
		return fmt.Errorf(`%w: %s: %w`, model.ErrNotFound, path.Name(), err)
	}
	if entry.IsDir() {
		return fmt.Errorf(`%w: %s is a directory`, model.ErrInvalidTarget, path.Name())
	}
	return nil
}
