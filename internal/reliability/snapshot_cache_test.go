package reliability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/portfolio"
)

func TestSnapshotCache_RoundTrip(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cache := NewSnapshotCache(t.TempDir(), log)

	cachedAt := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)
	review := CachedReview{
		Snapshot: domain.PortfolioSnapshot{
			TotalValue:      50_000_000,
			ActiveLoans:     120,
			DefaultRate:     0.01,
			DelinquencyRate: 0.03,
			LiquidityRatio:  0.08,
			SectorExposure:  map[string]float64{"services": 0.4, "retail": 0.6},
			AsOf:            cachedAt,
		},
		Risk: portfolio.RiskReport{
			OverallScore: 32.5,
			RiskLevel:    "Low",
			StressPassed: true,
			AsOf:         cachedAt,
		},
		CachedAt: cachedAt,
	}

	require.NoError(t, cache.Store(review))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, review.Snapshot.TotalValue, loaded.Snapshot.TotalValue)
	assert.Equal(t, review.Snapshot.ActiveLoans, loaded.Snapshot.ActiveLoans)
	assert.Equal(t, review.Snapshot.SectorExposure, loaded.Snapshot.SectorExposure)
	assert.Equal(t, review.Risk.OverallScore, loaded.Risk.OverallScore)
	assert.Equal(t, review.Risk.RiskLevel, loaded.Risk.RiskLevel)
	assert.True(t, loaded.CachedAt.Equal(cachedAt))
}

func TestSnapshotCache_LoadMissing(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cache := NewSnapshotCache(t.TempDir(), log)

	loaded, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotCache_StoreReplacesPrevious(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cache := NewSnapshotCache(t.TempDir(), log)

	first := CachedReview{
		Risk:     portfolio.RiskReport{OverallScore: 10},
		CachedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	second := CachedReview{
		Risk:     portfolio.RiskReport{OverallScore: 55},
		CachedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, cache.Store(first))
	require.NoError(t, cache.Store(second))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 55.0, loaded.Risk.OverallScore)
}

func TestSnapshotCache_CorruptFile(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	dataDir := t.TempDir()
	cache := NewSnapshotCache(dataDir, log)

	cachePath := filepath.Join(dataDir, "cache", "last_review.msgpack")
	require.NoError(t, os.MkdirAll(filepath.Dir(cachePath), 0755))
	require.NoError(t, os.WriteFile(cachePath, []byte("not msgpack"), 0644))

	_, err := cache.Load()
	assert.Error(t, err)
}
