// Package reliability provides operational safety nets: the cached last
// review for fast restarts and S3 backups of the data directory.
package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/portfolio"
)

// CachedReview is the last completed portfolio review, persisted so a
// restarted process can serve risk data before the first scheduled run.
type CachedReview struct {
	Snapshot domain.PortfolioSnapshot `json:"snapshot" msgpack:"snapshot"`
	Risk     portfolio.RiskReport     `json:"risk" msgpack:"risk"`
	CachedAt time.Time                `json:"cached_at" msgpack:"cached_at"`
}

// SnapshotCache persists the latest review under the data directory.
type SnapshotCache struct {
	path string
	log  zerolog.Logger
}

// NewSnapshotCache creates a snapshot cache rooted at dataDir.
func NewSnapshotCache(dataDir string, log zerolog.Logger) *SnapshotCache {
	return &SnapshotCache{
		path: filepath.Join(dataDir, "cache", "last_review.msgpack"),
		log:  log.With().Str("service", "snapshot_cache").Logger(),
	}
}

// Store writes the review to disk, replacing any previous one.
func (c *SnapshotCache) Store(review CachedReview) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := msgpack.Marshal(review)
	if err != nil {
		return fmt.Errorf("failed to encode cached review: %w", err)
	}

	// Write to a temp file first so a crash mid-write never corrupts
	// the previous cache.
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	c.log.Debug().
		Time("cached_at", review.CachedAt).
		Int("size_bytes", len(data)).
		Msg("Cached portfolio review")

	return nil
}

// Load reads the cached review. Returns nil without error when no cache
// file exists yet.
func (c *SnapshotCache) Load() (*CachedReview, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var review CachedReview
	if err := msgpack.Unmarshal(data, &review); err != nil {
		return nil, fmt.Errorf("failed to decode cached review: %w", err)
	}

	return &review, nil
}
