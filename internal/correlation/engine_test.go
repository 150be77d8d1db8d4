package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchdesk-systems/watchdesk/internal/models"
	"github.com/watchdesk-systems/watchdesk/internal/store"
)

func setupEngine(t *testing.T) (*miniredis.Miniredis, *Engine) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewEngine(store.NewRedisStoreWithClient(client, time.Hour))
}

func alertAt(ip string, ruleID, level int, ts time.Time) *models.Alert {
	return &models.Alert{
		SourceIP:  ip,
		RuleID:    ruleID,
		RuleLevel: level,
		Timestamp: ts,
	}
}

func TestFirstAlertIsNovel(t *testing.T) {
	_, e := setupEngine(t)

	res, err := e.Ingest(context.Background(), alertAt("203.0.113.5", 5712, 10, time.Now()))
	require.NoError(t, err)
	assert.True(t, res.IsNovel)
	assert.Equal(t, 1, res.WindowCount)
	assert.Equal(t, 10, res.WindowMaxLevel)
	assert.False(t, res.Degraded)
}

func TestNonDecreasingLevelsOnlyFirstNovel(t *testing.T) {
	// For a sequence with non-increasing levels only the first alert may
	// be novel; equal or lower levels are noise.
	_, e := setupEngine(t)
	ctx := context.Background()
	base := time.Now()

	levels := []int{5, 5, 4, 3, 5, 2}
	for i, lvl := range levels {
		res, err := e.Ingest(ctx, alertAt("203.0.113.5", 1000+i, lvl, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		if i == 0 {
			assert.True(t, res.IsNovel, "first alert must be novel")
		} else {
			assert.False(t, res.IsNovel, "alert %d (level %d) must not be novel", i, lvl)
		}
		assert.Equal(t, i+1, res.WindowCount)
	}
}

func TestSeverityEscalationIsNovel(t *testing.T) {
	_, e := setupEngine(t)
	ctx := context.Background()
	base := time.Now()

	res, err := e.Ingest(ctx, alertAt("203.0.113.5", 5710, 5, base))
	require.NoError(t, err)
	assert.True(t, res.IsNovel)

	res, err = e.Ingest(ctx, alertAt("203.0.113.5", 5712, 10, base.Add(time.Second)))
	require.NoError(t, err)
	assert.True(t, res.IsNovel, "strictly higher level is always novel")
	assert.Equal(t, 10, res.WindowMaxLevel)

	// Back down to the old max: not novel.
	res, err = e.Ingest(ctx, alertAt("203.0.113.5", 5712, 10, base.Add(2*time.Second)))
	require.NoError(t, err)
	assert.False(t, res.IsNovel)
}

func TestRetransmissionAppendedButNotNovel(t *testing.T) {
	_, e := setupEngine(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	res, err := e.Ingest(ctx, alertAt("203.0.113.5", 5712, 10, ts))
	require.NoError(t, err)
	assert.True(t, res.IsNovel)

	// Identical (ruleId, timestamp): the log still grows, novelty does not.
	res, err = e.Ingest(ctx, alertAt("203.0.113.5", 5712, 10, ts))
	require.NoError(t, err)
	assert.False(t, res.IsNovel)
	assert.Equal(t, 2, res.WindowCount)
}

func TestIPsAreIndependent(t *testing.T) {
	_, e := setupEngine(t)
	ctx := context.Background()
	now := time.Now()

	res, err := e.Ingest(ctx, alertAt("203.0.113.5", 5712, 10, now))
	require.NoError(t, err)
	assert.True(t, res.IsNovel)

	res, err = e.Ingest(ctx, alertAt("198.51.100.9", 5712, 10, now))
	require.NoError(t, err)
	assert.True(t, res.IsNovel, "first alert for a different IP is novel")
}

func TestStoreDownFailsOpen(t *testing.T) {
	mr, e := setupEngine(t)
	mr.Close()

	res, err := e.Ingest(context.Background(), alertAt("203.0.113.5", 5712, 10, time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.True(t, res.IsNovel, "fail-open: degraded result still flags the alert")
	assert.True(t, res.Degraded)
	assert.Equal(t, 10, res.WindowMaxLevel)
}
