package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
)

type fakePosts struct {
	mu sync.Mutex

	listFn   func(ctx context.Context) ([]domain.Post, error)
	getFn    func(ctx context.Context, id domain.PostID) (*domain.Post, error)
	createFn func(ctx context.Context, post domain.NewPost) error

	listCalls int
	gotIDs    []domain.PostID
	created   []domain.NewPost
}

func (f *fakePosts) ListPosts(ctx context.Context) ([]domain.Post, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (f *fakePosts) GetPost(ctx context.Context, id domain.PostID) (*domain.Post, error) {
	f.mu.Lock()
	f.gotIDs = append(f.gotIDs, id)
	fn := f.getFn
	f.mu.Unlock()
	if fn == nil {
		return nil, &domain.ServiceError{Status: 404}
	}
	return fn(ctx, id)
}

func (f *fakePosts) CreatePost(ctx context.Context, post domain.NewPost) error {
	f.mu.Lock()
	f.created = append(f.created, post)
	fn := f.createFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, post)
}

func (f *fakePosts) calls() (list, get, create int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, len(f.gotIDs), len(f.created)
}

type fakePreviews struct {
	mu         sync.Mutex
	next       int
	live       map[string]domain.Preview
	released   []string
	acquireErr error
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{live: map[string]domain.Preview{}}
}

func (f *fakePreviews) Acquire(_ context.Context, img domain.Image) (*domain.Preview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.next++
	p := domain.Preview{Handle: fmt.Sprintf("h%d", f.next), Original: img, Thumb: img.Data, ThumbType: img.ContentType}
	f.live[p.Handle] = p
	return &p, nil
}

func (f *fakePreviews) Get(_ context.Context, handle string) (*domain.Preview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.live[handle]
	if !ok {
		return nil, domain.ErrPreviewNotFound
	}
	return &p, nil
}

func (f *fakePreviews) Release(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, handle)
	f.released = append(f.released, handle)
	return nil
}

func (f *fakePreviews) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.NewPost
	err       error
}

func (f *fakePublisher) PublishPostSubmitted(_ context.Context, post domain.NewPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, post)
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

var errBoom = errors.New("boom")
