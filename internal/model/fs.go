package model

import (
	"errors"
	"io"
	"time"
)

var (
	ErrPathTooLong   = errors.New(`path too long`)
	ErrPathEscape    = errors.New(`path escapes base`)
	ErrInvalidPath   = errors.New(`invalid path`)
	ErrOpenFailed    = errors.New(`open failed`)
	ErrOutOfMemory   = errors.New(`out of memory`)
	ErrNotFound      = errors.New(`not found`)
	ErrInvalidTarget = errors.New(`invalid target`)
	ErrWriteFailed   = errors.New(`write failed`)
	ErrCaptureFailed = errors.New(`capture failed`)

	ErrAlreadyRunning = errors.New(`server already running`)
	ErrStartFailed    = errors.New(`server start failed`)
)

type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (kind Kind) String() string {
	if kind == KindDirectory {
		return `directory`
	}
	return `file`
}

// Entry is one row of a directory listing. Size and Modified are only
// meaningful for files.
type Entry struct {
	Name     string
	Kind     Kind
	Size     int64
	Modified time.Time
}

func (entry Entry) IsDir() bool {
	return entry.Kind == KindDirectory
}

type DirEntry struct {
	Name string
	Kind Kind
}

// Volume is the storage collaborator. Paths are absolute within the volume's
// own namespace, e.g. "/sdcard/photos/a.jpeg".
type Volume interface {
	Stat(path string) (Entry, error)
	Open(path string) (io.ReadCloser, error)
	ReadDir(path string) ([]DirEntry, error)
	Remove(path string) error
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string) error
}
