// Package blob owns the on-disk placement and retrieval of uploaded clip
// content. Blobs live directly under a single storage root, named by the
// catalog slug plus the sanitized extension of the original upload, so the
// path for any record is deterministic and never client-controlled.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rovercam/rovercam/pkg/logger"
)

var (
	ErrNotFound            = errors.New("blob does not exist")
	ErrRangeNotSatisfiable = errors.New("blob range start is beyond the blob size")
)

var log = logger.Get("BlobStore")

const tempFilePattern = ".upload-*"

type (
	// Entry describes one stored blob as found on disk.
	Entry struct {
		Slug    string
		Ext     string
		ModTime time.Time
	}

	Store struct {
		root string
	}
)

// NewStore constructs a blob store rooted at the provided directory,
// creating the directory if it does not yet exist.
func NewStore(root string) (*Store, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob storage root: %w", err)
	}

	return &Store{root: root}, nil
}

// Put writes the full content of the provided reader to the path derived
// from the slug and extension, returning the number of bytes written.
//
// The content is staged in a temporary file and renamed into place so a
// failed write never leaves a partially written blob at the final path.
func (store *Store) Put(slug string, ext string, r io.Reader) (int64, error) {
	temp, err := os.CreateTemp(store.root, tempFilePattern)
	if err != nil {
		return 0, fmt.Errorf("failed to stage blob %s: %w", slug, err)
	}
	defer os.Remove(temp.Name())

	written, err := io.Copy(temp, r)
	if err != nil {
		temp.Close()
		return 0, fmt.Errorf("failed to write blob %s: %w", slug, err)
	}

	if err := temp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write blob %s: %w", slug, err)
	}

	if err := os.Rename(temp.Name(), store.Path(slug, ext)); err != nil {
		return 0, fmt.Errorf("failed to commit blob %s: %w", slug, err)
	}

	log.Emit(logger.NEW, "Stored blob %s (%d bytes)\n", slug, written)
	return written, nil
}

// SizeOf reports the current byte length of the stored blob.
func (store *Store) SizeOf(slug string, ext string) (int64, error) {
	info, err := os.Stat(store.Path(slug, ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("blob %s: %w", slug, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to stat blob %s: %w", slug, err)
	}

	return info.Size(), nil
}

// ReadRange returns exactly the bytes [start, end] of the blob. A negative
// end means "to end of file". A start at or beyond the current blob size
// cannot be satisfied.
func (store *Store) ReadRange(slug string, ext string, start int64, end int64) ([]byte, error) {
	f, err := os.Open(store.Path(slug, ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", slug, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat blob %s: %w", slug, err)
	}

	size := info.Size()
	if start < 0 || start >= size {
		return nil, fmt.Errorf("blob %s has size %d, range starts at %d: %w", slug, size, start, ErrRangeNotSatisfiable)
	}
	if end < 0 || end >= size {
		end = size - 1
	}

	content := make([]byte, end-start+1)
	if _, err := io.ReadFull(io.NewSectionReader(f, start, int64(len(content))), content); err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", slug, err)
	}

	return content, nil
}

// Delete removes the blob if present. An already-absent blob is not an
// error; the catalog record may outlive its blob after a partial failure,
// and deletion must remain idempotent so such records can still be removed.
func (store *Store) Delete(slug string, ext string) error {
	if err := os.Remove(store.Path(slug, ext)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", slug, err)
	}

	return nil
}

// Entries lists every blob currently on disk along with its last
// modification time. Staged temporary files are excluded.
func (store *Store) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(store.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob storage root: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || strings.HasPrefix(dirEntry.Name(), ".") {
			continue
		}

		info, err := dirEntry.Info()
		if err != nil {
			continue
		}

		slug, ext := dirEntry.Name(), ""
		if idx := strings.IndexByte(slug, '.'); idx >= 0 {
			slug, ext = slug[:idx], slug[idx:]
		}

		entries = append(entries, Entry{Slug: slug, Ext: ext, ModTime: info.ModTime()})
	}

	return entries, nil
}

// Path derives the storage path for the given slug and extension. The slug
// is generated internally and trusted; the extension originates from the
// client-supplied filename and is sanitized before use.
func (store *Store) Path(slug string, ext string) string {
	return filepath.Join(store.root, slug+SanitizeExtension(ext))
}

// SanitizeExtension strips anything from a client-derived file extension
// which could influence the directory the blob is placed in: path
// separators, parent-directory sequences and null bytes.
func SanitizeExtension(ext string) string {
	ext = strings.ReplaceAll(ext, "\x00", "")
	ext = strings.ReplaceAll(ext, "/", "")
	ext = strings.ReplaceAll(ext, "\\", "")
	for strings.Contains(ext, "..") {
		ext = strings.ReplaceAll(ext, "..", ".")
	}

	return ext
}
