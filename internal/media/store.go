package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rovercam/rovercam/internal/database"
	"github.com/rovercam/rovercam/pkg/logger"
)

var (
	ErrVideoNotFound = errors.New("video does not exist")
	ErrBlankTitle    = errors.New("title cannot be blank")
)

var log = logger.Get("MediaStore")

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Create inserts a new video record under the provided slug. The slug is
// generated by the caller (see NewSlug) before the blob write so that the
// record is only ever created for content already durable on disk.
// Uniqueness is backed by the UNIQUE constraint on the slug column; a
// collision surfaces as an insert error rather than being retried, as the
// probability is negligible.
func (store *Store) Create(db database.Queryable, slug string, origName string, mime string, sizeBytes int64) (*Video, error) {
	var video Video
	err := db.Get(&video, `
		INSERT INTO videos(slug, orig_name, title, mime, size_bytes, created_at)
		VALUES ($1, $2, NULL, $3, $4, current_timestamp)
		RETURNING *
	`, slug, origName, mime, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert new video: %w", err)
	}

	log.Emit(logger.NEW, "Created video record %s (%s, %d bytes)\n", slug, mime, sizeBytes)
	return &video, nil
}

func (store *Store) Get(db database.Queryable, slug string) (*Video, error) {
	query, args, err := selectVideoBuilder().Where("videos.slug=?", slug).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select video query: %w", err)
	}

	var video Video
	if err := db.Get(&video, db.Rebind(query), args...); err != nil {
		return nil, ErrVideoNotFound
	}

	return &video, nil
}

// ListAll returns every known video, most recently created first. Records
// created at the same instant are ordered by descending surrogate key so
// later inserts still list first.
func (store *Store) ListAll(db database.Queryable) ([]*Video, error) {
	query, args, err := selectVideoBuilder().
		OrderBy("videos.created_at DESC", "videos.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list videos query: %w", err)
	}

	var results []Video
	if err := db.Select(&results, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	output := make([]*Video, len(results))
	for k := range results {
		output[k] = &results[k]
	}

	return output, nil
}

// SetTitle updates the human label of the video with the given slug. The
// provided title is trimmed of surrounding whitespace first; a title which
// is blank after trimming is rejected without touching the record.
func (store *Store) SetTitle(db database.Queryable, slug string, title string) (*Video, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return nil, ErrBlankTitle
	}

	var video Video
	err := db.Get(&video, `UPDATE videos SET title=$1 WHERE slug=$2 RETURNING *`, trimmed, slug)
	if err != nil {
		return nil, ErrVideoNotFound
	}

	return &video, nil
}

func (store *Store) Delete(db database.Queryable, slug string) error {
	result, err := db.Exec(`DELETE FROM videos WHERE slug=$1`, slug)
	if err != nil {
		return fmt.Errorf("failed to delete video %s: %w", slug, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrVideoNotFound
	}

	log.Emit(logger.REMOVE, "Deleted video record %s\n", slug)
	return nil
}

// KnownSlugs returns the set of every slug with a live record. Used by the
// orphan sweeper to decide which blobs on disk are still referenced.
func (store *Store) KnownSlugs(db database.Queryable) (map[string]struct{}, error) {
	var slugs []string
	if err := db.Select(&slugs, `SELECT slug FROM videos`); err != nil {
		return nil, fmt.Errorf("failed to list video slugs: %w", err)
	}

	known := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		known[slug] = struct{}{}
	}

	return known, nil
}

func selectVideoBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("videos.*").
		From("videos")
}

// NewSlug generates a fresh identifier: 128 bits of randomness rendered as
// 32 hex characters, containing no path separators and therefore safe to
// use directly as a filesystem path component.
func NewSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
