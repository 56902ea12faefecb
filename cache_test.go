package sharekit

import (
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestSnapshotCacheRoundTrip(t *testing.T) {
	cache, err := OpenSnapshotCache(filepath.Join(t.TempDir(), "snapshots.db"))
	assert.Equal(t, err, nil)
	defer cache.Close()

	_, _, _, ok := cache.Load("examples", "counter")
	assert.Equal(t, ok, false)

	err = cache.Store("examples", "counter", 3, "http://sharejs.org/types/JSONv0", []byte(`{"numClicks":5}`))
	assert.Equal(t, err, nil)

	v, typeName, data, ok := cache.Load("examples", "counter")
	assert.Equal(t, ok, true)
	assert.Equal(t, v, uint64(3))
	assert.Equal(t, typeName, "http://sharejs.org/types/JSONv0")
	assert.Equal(t, string(data), `{"numClicks":5}`)

	// Upsert replaces the envelope.
	err = cache.Store("examples", "counter", 4, "http://sharejs.org/types/JSONv0", []byte(`{"numClicks":6}`))
	assert.Equal(t, err, nil)
	v, _, data, ok = cache.Load("examples", "counter")
	assert.Equal(t, ok, true)
	assert.Equal(t, v, uint64(4))
	assert.Equal(t, string(data), `{"numClicks":6}`)

	err = cache.Delete("examples", "counter")
	assert.Equal(t, err, nil)
	_, _, _, ok = cache.Load("examples", "counter")
	assert.Equal(t, ok, false)
}
