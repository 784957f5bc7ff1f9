package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrBlobTooLarge is returned when an uploaded file exceeds the store's
	// size limit.
	ErrBlobTooLarge = errors.New("blob too large")
)

// BlobStore accepts a file payload and returns a descriptor with a stable
// retrieval URL. The chat core only ever stores the descriptor, inside an
// attachment-kind message.
type BlobStore interface {
	Put(ctx context.Context, originalName string, r io.Reader) (*Attachment, error)
}

// DiskBlobStore stores blobs as files under a directory. Files are named by a
// random uuid plus the detected extension so original names never collide or
// traverse paths. The returned URL is baseURL/{filename}; the app serves the
// directory at that path.
type DiskBlobStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewDiskBlobStore(dir, baseURL string, maxBytes int64) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &DiskBlobStore{
		dir:      dir,
		baseURL:  baseURL,
		maxBytes: maxBytes,
	}, nil
}

func (s *DiskBlobStore) Put(_ context.Context, originalName string, r io.Reader) (*Attachment, error) {
	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	// Copy one byte past the limit so an oversized payload is detectable
	// without reading it fully.
	size, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("writing blob: %w", err)
	}
	if size > s.maxBytes {
		return nil, ErrBlobTooLarge
	}

	mtype, err := mimetype.DetectFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("detecting mime type: %w", err)
	}

	filename := uuid.New().String() + mtype.Extension()
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, filename)); err != nil {
		return nil, fmt.Errorf("storing blob: %w", err)
	}

	return &Attachment{
		Filename:     filename,
		OriginalName: path.Base(originalName),
		Size:         size,
		MIMEType:     mtype.String(),
		URL:          path.Join(s.baseURL, filename),
	}, nil
}

// Dir returns the directory blobs are stored in.
func (s *DiskBlobStore) Dir() string {
	return s.dir
}
