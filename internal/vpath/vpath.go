// Package vpath maps request URIs onto filesystem paths below a base directory.
package vpath

import (
	"fmt"
	"net/url"
	"strings"

	"camfs/internal/model"
)

type Path struct {
	Full   string
	Suffix string
}

// IsDir reports whether the request named a directory, i.e. the suffix ends
// in a separator. It says nothing about what exists on disk.
func (path Path) IsDir() bool {
	return strings.HasSuffix(path.Suffix, `/`)
}

// Name is the suffix without the leading separator, used in messages.
func (path Path) Name() string {
	return strings.TrimPrefix(path.Suffix, `/`)
}

// Strip returns the path portion of uri, ending at the first '?' or '#'.
func Strip(uri string) string {
	if index := strings.IndexAny(uri, `?#`); index >= 0 {
		return uri[:index]
	}
	return uri
}

// Trim removes a routing prefix such as "/delete" from uri.
func Trim(uri string, prefix string) string {
	return strings.TrimPrefix(uri, prefix)
}

// Resolve joins base and the path portion of uri. The combined length plus a
// terminator must fit capacity or ErrPathTooLong is returned.
func Resolve(base string, uri string, capacity int) (Path, error) {
	suffix, err := url.PathUnescape(Strip(uri))
	if err != nil {
		return Path{}, fmt.Errorf(`%w: %s`, model.ErrInvalidPath, err)
	}
	if len(base)+len(suffix)+1 > capacity {
		return Path{}, fmt.Errorf(`%w: %d+%d > %d`, model.ErrPathTooLong, len(base), len(suffix), capacity-1)
	}
	if strings.ContainsRune(suffix, 0) {
		return Path{}, fmt.Errorf(`%w: nul byte`, model.ErrInvalidPath)
	}
	for _, name := range strings.Split(suffix, `/`) {
		if name == `..` {
			return Path{}, fmt.Errorf(`%w: %s`, model.ErrPathEscape, suffix)
		}
	}
	return Path{Full: base + suffix, Suffix: suffix}, nil
}
