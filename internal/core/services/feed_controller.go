package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/page"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
)

// FeedController pilote la page liste : chargement, aperçu, envoi.
// Il est construit une fois par instance de page et ne touche qu'à ses propres noeuds.
type FeedController struct {
	posts     ports.PostsService
	previews  ports.PreviewStore
	publisher ports.EventPublisher
	loc       *time.Location

	mu     sync.Mutex
	doc    *page.Feed
	form   *page.UploadForm
	status *page.Status
	list   *page.List

	// Jetons monotones : seule la tentative la plus récente écrit son résultat
	listSeq   atomic.Uint64
	submitSeq atomic.Uint64
}

func NewFeedController(
	doc *page.Feed,
	posts ports.PostsService,
	previews ports.PreviewStore,
	publisher ports.EventPublisher,
	loc *time.Location,
) *FeedController {
	return &FeedController{
		posts:     posts,
		previews:  previews,
		publisher: publisher,
		loc:       loc,
		doc:       doc,
		form:      &doc.Form,
		status:    &doc.Status,
		list:      &doc.List,
	}
}

var _ ports.FeedController = (*FeedController)(nil)

// Snapshot copie les noeuds pour le rendu.
func (c *FeedController) Snapshot() page.Feed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone()
}

// --- LISTE ---

func (c *FeedController) LoadList(ctx context.Context) {
	token := c.listSeq.Add(1)

	c.mu.Lock()
	if token == c.listSeq.Load() {
		*c.list = page.List{State: page.StateLoading, Placeholder: page.TextLoading}
	}
	c.mu.Unlock()

	posts, err := c.posts.ListPosts(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.listSeq.Load() {
		slog.Debug("Discarding stale post list", "token", token)
		return
	}

	if err != nil {
		slog.Warn("Failed to load posts", "error", err)
		*c.list = page.List{State: page.StateErrored, Placeholder: page.TextLoadFailed + err.Error()}
		return
	}

	if len(posts) == 0 {
		*c.list = page.List{State: page.StateDisplayed, Placeholder: page.TextEmpty}
		return
	}

	cards := make([]page.Card, len(posts))
	for i, p := range posts {
		cards[i] = page.Card{
			ID:       p.ID.String(),
			Href:     page.DetailHref(p.ID.String()),
			ImageURL: p.ImageURL,
			Caption:  p.Caption,
			Time:     page.FormatMedium(p.CreatedAt, c.loc),
		}
	}
	*c.list = page.List{State: page.StateDisplayed, Cards: cards}
}

// Refresh est le bouton "Refresh" : pas de debounce, pas de limite.
func (c *FeedController) Refresh(ctx context.Context) {
	c.LoadList(ctx)
}

// --- FORMULAIRE ---

func (c *FeedController) SetCaption(caption string) {
	c.mu.Lock()
	c.form.Caption = caption
	c.mu.Unlock()
}

// SelectImage affiche l'aperçu local du fichier choisi, sans appel au Posts Service.
// L'ancien handle est relâché avant d'en acquérir un nouveau.
func (c *FeedController) SelectImage(ctx context.Context, img *domain.Image) {
	c.releasePreview(ctx)
	if img == nil {
		return
	}

	preview, err := c.previews.Acquire(ctx, *img)
	if err != nil {
		slog.Warn("Preview rejected", "filename", img.Filename, "error", err)
		c.mu.Lock()
		c.status.Text = page.TextPreviewFailed + err.Error()
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	replaced := c.form.Preview.Handle
	c.form.Preview = page.PreviewBox{
		Handle:   preview.Handle,
		ImageURL: page.PreviewURL(preview.Handle),
		Visible:  true,
	}
	c.mu.Unlock()

	// Sélection concurrente : on ne garde qu'un handle vivant
	if replaced != "" {
		c.release(ctx, replaced)
	}
}

func (c *FeedController) Submit(ctx context.Context, in ports.SubmitInput) {
	token := c.submitSeq.Add(1)

	c.mu.Lock()
	c.status.Text = ""
	handle := c.form.Preview.Handle
	c.mu.Unlock()

	img := in.Image
	if img == nil && handle != "" {
		preview, err := c.previews.Get(ctx, handle)
		if err != nil {
			slog.Warn("Selected preview is gone", "handle", handle, "error", err)
		} else {
			img = &preview.Original
		}
	}

	post := domain.NewPost{Image: img, Caption: strings.TrimSpace(in.Caption)}
	if err := post.Validate(); err != nil {
		c.setStatus(token, page.TextMissingInput)
		return
	}

	c.setStatus(token, page.TextUploading)

	if err := c.posts.CreatePost(ctx, post); err != nil {
		slog.Warn("Upload failed", "error", err)
		c.setStatus(token, page.TextUploadFailed+uploadFailureReason(err))
		return
	}

	// Reset du formulaire : légende, fichier, aperçu
	c.mu.Lock()
	c.form.Caption = ""
	c.mu.Unlock()
	c.releasePreview(ctx)

	c.setStatus(token, page.TextUploadOK)

	if err := c.publisher.PublishPostSubmitted(ctx, post); err != nil {
		// Best effort : l'envoi a réussi, l'utilisateur n'en sait rien
		slog.Error("Failed to publish post submitted event", "error", err)
	}

	// Pas d'insertion locale : on relit tout depuis le Posts Service
	c.LoadList(ctx)
}

// ClearStatus vide la zone de statut, comme un rechargement de la page.
// Un envoi encore en cours n'y écrira plus.
func (c *FeedController) ClearStatus() {
	c.submitSeq.Add(1)
	c.mu.Lock()
	c.status.Text = ""
	c.mu.Unlock()
}

// Close relâche l'aperçu quand l'instance de page disparaît.
func (c *FeedController) Close(ctx context.Context) {
	c.releasePreview(ctx)
}

// --- Helpers ---

func (c *FeedController) setStatus(token uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.submitSeq.Load() {
		slog.Debug("Discarding stale submit status", "token", token)
		return
	}
	c.status.Text = text
}

// releasePreview masque l'aperçu et rend le handle au store.
func (c *FeedController) releasePreview(ctx context.Context) {
	c.mu.Lock()
	handle := c.form.Preview.Handle
	c.form.Preview = page.PreviewBox{}
	c.mu.Unlock()

	if handle != "" {
		c.release(ctx, handle)
	}
}

func (c *FeedController) release(ctx context.Context, handle string) {
	if err := c.previews.Release(ctx, handle); err != nil {
		slog.Error("Failed to release preview", "handle", handle, "error", err)
	}
}

func uploadFailureReason(err error) string {
	var se *domain.ServiceError
	if errors.As(err, &se) && se.Message == "" {
		return page.FallbackUploadFail
	}
	return err.Error()
}
