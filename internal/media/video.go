package media

import (
	"database/sql"
	"mime"
	"path/filepath"
	"time"
)

const DefaultMimeType = "video/mp4"

// Video is a single clip known to the catalog. The slug is the externally
// visible identifier and doubles as the blob storage key; OrigName is only
// used to derive a display name and the on-disk file extension.
type Video struct {
	ID        int64          `db:"id"`
	Slug      string         `db:"slug"`
	OrigName  string         `db:"orig_name"`
	Title     sql.NullString `db:"title"`
	Mime      string         `db:"mime"`
	SizeBytes int64          `db:"size_bytes"`
	CreatedAt time.Time      `db:"created_at"`
}

// Extension returns the file extension (including the leading dot) implied
// by the clip's original filename. May be empty.
func (video *Video) Extension() string {
	return filepath.Ext(video.OrigName)
}

// TitleOrEmpty unwraps the nullable title column.
func (video *Video) TitleOrEmpty() string {
	if video.Title.Valid {
		return video.Title.String
	}

	return ""
}

// ExtensionOf returns the file extension (including the leading dot) of
// the provided filename. May be empty.
func ExtensionOf(filename string) string {
	return filepath.Ext(filename)
}

// MimeTypeForFilename infers a MIME type from the extension of the provided
// filename. Unrecognised extensions fall back to the generic video type, as
// every clip this service stores is expected to be a video container.
func MimeTypeForFilename(filename string) string {
	if inferred := mime.TypeByExtension(filepath.Ext(filename)); inferred != "" {
		return inferred
	}

	return DefaultMimeType
}
