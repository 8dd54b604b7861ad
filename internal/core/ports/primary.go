package ports

import (
	"context"
	"net/url"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
)

// --- DRIVING (Ce que les pages exposent) ---
// Aucune opération ne renvoie d'erreur : le résultat est écrit dans les noeuds de la page.

type SubmitInput struct {
	Image   *domain.Image // nil = utiliser le fichier de l'aperçu courant
	Caption string
}

type FeedController interface {
	LoadList(ctx context.Context)
	Refresh(ctx context.Context)
	SelectImage(ctx context.Context, img *domain.Image)
	SetCaption(caption string)
	Submit(ctx context.Context, in SubmitInput)
	ClearStatus()
	Close(ctx context.Context)
}

type DetailController interface {
	Load(ctx context.Context, pageURL *url.URL)
}
