package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
)

// RedisStore partage les aperçus entre plusieurs instances du front.
// Un aperçu = un hash "preview:<handle>" avec TTL.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxBytes int64
}

func NewRedisStore(client *redis.Client, ttl time.Duration, maxBytes int64) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, maxBytes: maxBytes}
}

var _ ports.PreviewStore = (*RedisStore)(nil)

func previewKey(handle string) string {
	return fmt.Sprintf("preview:%s", handle)
}

func (s *RedisStore) Acquire(ctx context.Context, img domain.Image) (*domain.Preview, error) {
	p, err := newPreview(img, s.maxBytes, time.Now())
	if err != nil {
		return nil, err
	}

	key := previewKey(p.Handle)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"filename":     p.Original.Filename,
		"content_type": p.Original.ContentType,
		"data":         p.Original.Data,
		"thumb":        p.Thumb,
		"thumb_type":   p.ThumbType,
		"acquired_at":  p.AcquiredAt.UnixMilli(),
	})
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store preview: %w", err)
	}
	return p, nil
}

func (s *RedisStore) Get(ctx context.Context, handle string) (*domain.Preview, error) {
	fields, err := s.client.HGetAll(ctx, previewKey(handle)).Result()
	if err != nil {
		return nil, fmt.Errorf("load preview: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrPreviewNotFound
	}

	var acquiredAt time.Time
	var ms int64
	if _, err := fmt.Sscan(fields["acquired_at"], &ms); err == nil {
		acquiredAt = time.UnixMilli(ms)
	}

	return &domain.Preview{
		Handle: handle,
		Original: domain.Image{
			Filename:    fields["filename"],
			ContentType: fields["content_type"],
			Data:        []byte(fields["data"]),
		},
		Thumb:      []byte(fields["thumb"]),
		ThumbType:  fields["thumb_type"],
		AcquiredAt: acquiredAt,
	}, nil
}

// Release : DEL sur une clé absente ne fait rien, donc idempotent.
func (s *RedisStore) Release(ctx context.Context, handle string) error {
	if err := s.client.Del(ctx, previewKey(handle)).Err(); err != nil {
		return fmt.Errorf("release preview: %w", err)
	}
	return nil
}
