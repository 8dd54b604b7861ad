package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
)

func encodedImage(t *testing.T, w, h int, asJPEG bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if asJPEG {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	return buf.Bytes()
}

func TestThumbnailFitsLargeImage(t *testing.T) {
	data := encodedImage(t, 1200, 600, false)

	thumb, ct := thumbnail(domain.Image{Filename: "big.png", ContentType: "image/png", Data: data})

	assert.Equal(t, "image/png", ct)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 480, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
}

func TestThumbnailKeepsJPEG(t *testing.T) {
	data := encodedImage(t, 100, 50, true)

	thumb, ct := thumbnail(domain.Image{Filename: "a.jpg", ContentType: "image/jpeg", Data: data})

	assert.Equal(t, "image/jpeg", ct)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
}

func TestThumbnailFallsBackToOriginalBytes(t *testing.T) {
	data := []byte("definitely not an image")

	thumb, ct := thumbnail(domain.Image{Filename: "x.webp", ContentType: "image/webp", Data: data})

	assert.Equal(t, data, thumb)
	assert.Equal(t, "image/webp", ct)
}

// Comportement commun aux deux stores.
func exerciseStore(t *testing.T, store ports.PreviewStore) {
	ctx := context.Background()
	data := encodedImage(t, 20, 20, false)

	p, err := store.Acquire(ctx, domain.Image{Filename: "cat.PNG", Data: data})
	require.NoError(t, err)
	require.NotEmpty(t, p.Handle)
	assert.Equal(t, "image/png", p.Original.ContentType, "type deduced from extension")

	got, err := store.Get(ctx, p.Handle)
	require.NoError(t, err)
	assert.Equal(t, data, got.Original.Data)
	assert.Equal(t, "cat.PNG", got.Original.Filename)
	assert.NotEmpty(t, got.Thumb)

	other, err := store.Acquire(ctx, domain.Image{Filename: "dog.jpg", Data: encodedImage(t, 10, 10, true)})
	require.NoError(t, err)
	assert.NotEqual(t, p.Handle, other.Handle)

	require.NoError(t, store.Release(ctx, p.Handle))
	require.NoError(t, store.Release(ctx, p.Handle), "release is idempotent")
	_, err = store.Get(ctx, p.Handle)
	assert.ErrorIs(t, err, domain.ErrPreviewNotFound)

	_, err = store.Get(ctx, other.Handle)
	assert.NoError(t, err)

	_, err = store.Acquire(ctx, domain.Image{Filename: "anim.gif", Data: []byte{1}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)

	_, err = store.Acquire(ctx, domain.Image{Filename: "huge.jpg", Data: make([]byte, 128<<10)})
	assert.ErrorIs(t, err, domain.ErrPreviewTooLarge)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute, 64<<10))
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(15*time.Minute, 1<<20)
	store.now = func() time.Time { return now }

	p, err := store.Acquire(ctx, domain.Image{Filename: "a.png", Data: []byte("raw")})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	now = now.Add(15 * time.Minute)
	_, err = store.Get(ctx, p.Handle)
	assert.ErrorIs(t, err, domain.ErrPreviewNotFound)
	assert.Zero(t, store.Len())
}

func newRedisStore(t *testing.T, ttl time.Duration, maxBytes int64) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ttl, maxBytes), mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute, 64<<10)
	exerciseStore(t, store)
}

func TestRedisStoreExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 15*time.Minute, 1<<20)

	p, err := store.Acquire(ctx, domain.Image{Filename: "a.png", Data: []byte("raw")})
	require.NoError(t, err)
	assert.True(t, mr.Exists("preview:"+p.Handle))
	assert.Equal(t, 15*time.Minute, mr.TTL("preview:"+p.Handle))

	mr.FastForward(16 * time.Minute)

	_, err = store.Get(ctx, p.Handle)
	assert.ErrorIs(t, err, domain.ErrPreviewNotFound)
}

func TestRedisStoreUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(rdb, time.Minute, 1<<20)

	_, err := store.Acquire(context.Background(), domain.Image{Filename: "a.png", Data: []byte("raw")})
	assert.Error(t, err)
}
