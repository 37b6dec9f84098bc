// Package storage keeps annotated snapshot images.
package storage

import (
	"errors"
	"io"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrNotFound    = errors.New("file not found")
)

// FileInfo describes a file being saved. Prefix, when set, is prepended to
// the generated name so snapshots of one session sort together.
type FileInfo struct {
	Prefix      string
	Filename    string
	ContentType string
}

type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	DeleteFile(name string) error
}
