package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "ocr_cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	key := NewKey("read_text_from_image", []byte("png bytes"), []string{"eng"}, 0.5, 0)

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, key, "/tmp/a.png", "hello\nworld"))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello\nworld", got)

	require.NoError(t, c.Put(ctx, key, "/tmp/a.png", "replaced"))
	got, _, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "replaced", got)
}

func TestCache_KeyParametersIsolate(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	data := []byte("same document")
	base := NewKey("read_text_from_pdf", data, []string{"eng"}, 0, 2)
	require.NoError(t, c.Put(ctx, base, "doc.pdf", "two pages"))

	others := []Key{
		NewKey("read_text_from_pdf", data, []string{"eng"}, 0, 1),
		NewKey("read_text_from_pdf", data, []string{"eng"}, 0.3, 2),
		NewKey("read_text_from_pdf", data, []string{"eng", "tha"}, 0, 2),
		NewKey("read_text_from_image", data, []string{"eng"}, 0, 2),
		NewKey("read_text_from_pdf", []byte("other document"), []string{"eng"}, 0, 2),
	}
	for _, k := range others {
		_, ok, err := c.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k.String())
	}
}

func TestCache_ClearAndStats(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, NewKey("op", []byte("a"), nil, 0, 0), "a", "abc"))
	require.NoError(t, c.Put(ctx, NewKey("op", []byte("b"), nil, 0, 0), "b", "de"))

	s, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Entries: 2, Bytes: 5}, s)

	require.NoError(t, c.Clear(ctx))
	s, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, s)
}

func TestCache_Prune(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	c.now = func() time.Time { return base }
	old := NewKey("op", []byte("old"), nil, 0, 0)
	require.NoError(t, c.Put(ctx, old, "old", "x"))

	c.now = func() time.Time { return base.Add(48 * time.Hour) }
	fresh := NewKey("op", []byte("fresh"), nil, 0, 0)
	require.NoError(t, c.Put(ctx, fresh, "fresh", "y"))

	n, err := c.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, _ := c.Get(ctx, old)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, fresh)
	assert.True(t, ok)
}

func TestCache_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocr.db")
	key := NewKey("op", []byte("data"), []string{"eng"}, 0, 0)

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(context.Background(), key, "ref", "kept"))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kept", got)
	assert.Equal(t, path, c.Path())
}

func TestCache_Concurrent(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := NewKey("op", []byte{byte(i)}, nil, 0, 0)
			assert.NoError(t, c.Put(ctx, k, "ref", "text"))
			_, ok, err := c.Get(ctx, k)
			assert.NoError(t, err)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestKey_String(t *testing.T) {
	k := Key{Digest: "abc", Operation: "op", Languages: []string{"eng", "tha"}, MinConfidence: 0.25, PageLimit: 3}
	assert.Equal(t, "op|abc|eng+tha|0.25|3", k.String())
}
