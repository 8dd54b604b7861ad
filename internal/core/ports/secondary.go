package ports

import (
	"context"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
)

// --- DRIVEN (Ce dont les contrôleurs ont besoin) ---

// PostsService est le seul collaborateur externe : l'API HTTP /api/posts.
type PostsService interface {
	// ListPosts renvoie une liste vide (jamais d'erreur) quand la réponse n'est pas un tableau JSON
	ListPosts(ctx context.Context) ([]domain.Post, error)
	GetPost(ctx context.Context, id domain.PostID) (*domain.Post, error)
	// CreatePost ne lit pas le corps de la réponse en cas de succès
	CreatePost(ctx context.Context, post domain.NewPost) error
}

// PreviewStore détient les fichiers choisis le temps de l'aperçu.
// Chaque handle acquis doit être relâché explicitement.
type PreviewStore interface {
	Acquire(ctx context.Context, img domain.Image) (*domain.Preview, error)
	Get(ctx context.Context, handle string) (*domain.Preview, error)
	// Release est idempotent
	Release(ctx context.Context, handle string) error
}

// EventPublisher notifie le reste du système (best effort).
type EventPublisher interface {
	PublishPostSubmitted(ctx context.Context, post domain.NewPost) error
}
