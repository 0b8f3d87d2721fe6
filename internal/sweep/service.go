// Package sweep removes orphaned blobs from the storage root. An upload
// writes its blob before its catalog record, so a crash or aborted request
// can leave a blob on disk with no record pointing at it. Such blobs are
// invisible and harmless, but accumulate; this service reclaims them on a
// timer. The inverse (a record without a blob) is never produced by the
// sweeper since the catalog is the source of truth it reads from.
package sweep

import (
	"context"
	"time"

	"github.com/rovercam/rovercam/internal/blob"
	"github.com/rovercam/rovercam/pkg/logger"
)

var log = logger.Get("SweepServ")

type (
	Config struct {
		IntervalMinutes int `yaml:"interval_minutes" env:"SWEEP_INTERVAL_MINUTES" env-default:"30"`
		MinAgeMinutes   int `yaml:"min_age_minutes" env:"SWEEP_MIN_AGE_MINUTES" env-default:"60"`
	}

	blobStore interface {
		Entries() ([]blob.Entry, error)
		Delete(slug string, ext string) error
	}

	// catalog reports which slugs currently have live records.
	catalog interface {
		KnownSlugs() (map[string]struct{}, error)
	}

	sweepService struct {
		config Config
		blobs  blobStore
		videos catalog
	}
)

func New(config Config, blobs blobStore, videos catalog) *sweepService {
	return &sweepService{config: config, blobs: blobs, videos: videos}
}

// Run sweeps on the configured interval until the provided context is
// cancelled. The first sweep happens one full interval after startup.
func (service *sweepService) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute * time.Duration(service.config.IntervalMinutes))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed, err := service.SweepOnce(); err != nil {
				log.Emit(logger.ERROR, "Sweep failed: %s\n", err.Error())
			} else if removed > 0 {
				log.Emit(logger.REMOVE, "Swept %d orphaned blob(s)\n", removed)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// SweepOnce removes every blob which has no catalog record and is older
// than the configured minimum age. The age guard ensures an in-flight
// upload is never swept during the window between its blob write and its
// record insert.
func (service *sweepService) SweepOnce() (int, error) {
	known, err := service.videos.KnownSlugs()
	if err != nil {
		return 0, err
	}

	entries, err := service.blobs.Entries()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-time.Minute * time.Duration(service.config.MinAgeMinutes))
	removed := 0
	for _, entry := range entries {
		if _, ok := known[entry.Slug]; ok {
			continue
		}
		if entry.ModTime.After(cutoff) {
			continue
		}

		if err := service.blobs.Delete(entry.Slug, entry.Ext); err != nil {
			log.Emit(logger.WARNING, "Failed to sweep orphaned blob %s: %s\n", entry.Slug, err.Error())
			continue
		}

		removed++
	}

	return removed, nil
}
