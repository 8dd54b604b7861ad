package services

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/page"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
)

// DetailController affiche un seul post, désigné par le paramètre ?id= de l'URL.
type DetailController struct {
	posts ports.PostsService
	loc   *time.Location

	mu     sync.Mutex
	doc    *page.Detail
	status *page.Status
	body   *page.DetailBody

	seq atomic.Uint64
}

func NewDetailController(doc *page.Detail, posts ports.PostsService, loc *time.Location) *DetailController {
	return &DetailController{
		posts:  posts,
		loc:    loc,
		doc:    doc,
		status: &doc.Status,
		body:   &doc.Body,
	}
}

var _ ports.DetailController = (*DetailController)(nil)

// ResolveID lit le paramètre id ; une valeur vide compte comme absente.
func ResolveID(pageURL *url.URL) string {
	if pageURL == nil {
		return ""
	}
	return pageURL.Query().Get("id")
}

func (c *DetailController) Load(ctx context.Context, pageURL *url.URL) {
	token := c.seq.Add(1)

	id := ResolveID(pageURL)
	if id == "" {
		slog.Debug("Detail page without post id", "error", domain.ErrMissingID)
		c.write(token, func() {
			c.doc.State = page.StateErrored
			*c.status = page.Status{Text: page.TextMissingID}
			c.body.Visible = false
		})
		return
	}

	c.write(token, func() {
		c.doc.State = page.StateLoading
		*c.status = page.Status{Text: page.TextLoading}
		c.body.Visible = false
	})

	post, err := c.posts.GetPost(ctx, domain.PostID(id))
	if err != nil {
		slog.Warn("Failed to load post detail", "post_id", id, "error", err)
		c.write(token, func() {
			c.doc.State = page.StateErrored
			*c.status = page.Status{Text: page.TextDetailFailed + err.Error()}
			c.body.Visible = false
		})
		return
	}

	c.write(token, func() {
		c.doc.State = page.StateDisplayed
		*c.body = page.DetailBody{
			Visible:  true,
			ImageURL: post.ImageURL,
			Caption:  post.Caption,
			Meta:     page.FormatFull(post.CreatedAt, c.loc),
		}
		c.status.Hidden = true
	})
}

// Snapshot copie les noeuds pour le rendu.
func (c *DetailController) Snapshot() page.Detail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.doc
}

func (c *DetailController) write(token uint64, apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.seq.Load() {
		slog.Debug("Discarding stale post detail", "token", token)
		return
	}
	apply()
}
