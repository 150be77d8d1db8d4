package summary

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchdesk-systems/watchdesk/internal/models"
	"github.com/watchdesk-systems/watchdesk/internal/store"
)

func setupCompiler(t *testing.T) (*miniredis.Miniredis, *store.RedisStore, *Compiler) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := store.NewRedisStoreWithClient(client, time.Hour)
	return mr, s, NewCompiler(s)
}

func seed(t *testing.T, s *store.RedisStore, ip string, count, maxLevel int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		level := 1
		if i == count-1 {
			level = maxLevel
		}
		require.NoError(t, s.Append(ctx, &models.Alert{
			SourceIP:  ip,
			RuleID:    1000 + i,
			RuleLevel: level,
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestCompileEmpty(t *testing.T) {
	_, _, c := setupCompiler(t)

	digest, err := c.Compile(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Contains(t, digest, "Total alerts: 0")
	assert.Contains(t, digest, "Unique source IPs: 0")
	assert.Contains(t, digest, "No alerts in the window")
	assert.NotEqual(t, UnavailableDigest, digest)
}

func TestCompileRanking(t *testing.T) {
	_, s, c := setupCompiler(t)

	seed(t, s, "203.0.113.5", 10, 6)  // most alerts
	seed(t, s, "198.51.100.9", 4, 12) // fewer alerts, higher level
	seed(t, s, "192.0.2.77", 4, 3)    // same count as above, lower level

	digest, err := c.Compile(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Contains(t, digest, "Total alerts: 18")
	assert.Contains(t, digest, "Unique source IPs: 3")

	// Count ranks first; max level breaks the tie.
	i5 := strings.Index(digest, "203.0.113.5")
	i9 := strings.Index(digest, "198.51.100.9")
	i77 := strings.Index(digest, "192.0.2.77")
	require.True(t, i5 >= 0 && i9 >= 0 && i77 >= 0)
	assert.Less(t, i5, i9)
	assert.Less(t, i9, i77)
}

func TestCompileTopFiveOnly(t *testing.T) {
	_, s, c := setupCompiler(t)

	ips := []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4", "203.0.113.5", "203.0.113.6", "203.0.113.7"}
	for i, ip := range ips {
		seed(t, s, ip, i+1, 5)
	}

	digest, err := c.Compile(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Contains(t, digest, "Unique source IPs: 7")
	// The two quietest IPs are cut from the top list.
	assert.NotContains(t, digest, "203.0.113.1 ")
	assert.Contains(t, digest, "203.0.113.7")
	assert.Equal(t, TopN, strings.Count(digest, "max level"))
}

func TestCompileStoreUnavailable(t *testing.T) {
	mr, _, c := setupCompiler(t)
	mr.Close()

	digest, err := c.Compile(context.Background(), time.Hour)
	require.Error(t, err)
	assert.Equal(t, UnavailableDigest, digest)
	assert.NotContains(t, digest, "Total alerts: 0",
		"an outage must not read like a quiet hour")
}
