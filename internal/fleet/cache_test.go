package fleet

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"dronenav/internal/model"
)

type countingSource struct {
	StaticSource
	drones atomic.Int32
}

func (c *countingSource) Drones(ctx context.Context) ([]model.Drone, error) {
	c.drones.Add(1)
	return c.StaticSource.Drones(ctx)
}

func TestSnapshotMsgpackRoundTrip(t *testing.T) {
	snap := loadFixture(t)
	b, err := msgpack.Marshal(snap)
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, msgpack.Unmarshal(b, &got))
	assert.Equal(t, snap, got)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping redis test")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	src := &countingSource{StaticSource: StaticSource{Snap: loadFixture(t)}}
	c := NewRedisCache(rdb, src, 5*time.Second, nil)
	c.prefix = "dronenav:test:" + t.Name() + ":"
	ctx := context.Background()
	require.NoError(t, c.Invalidate(ctx))
	defer c.Invalidate(ctx)

	first, err := c.Drones(ctx)
	require.NoError(t, err)
	second, err := c.Drones(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, src.drones.Load(), "second read must come from redis")
}
