package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/matryer/way"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/page"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
	"github.com/jupiterclapton/captionfeed/internal/core/services"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Marge pour les champs texte du multipart en plus de l'image
const formOverhead = 1 << 20

type Server struct {
	sessions *Sessions
	posts    ports.PostsService
	previews ports.PreviewStore
	loc      *time.Location
	maxBytes int64
	uploads  http.Handler
	tmpl     *template.Template
}

type Options struct {
	Sessions *Sessions
	Posts    ports.PostsService
	Previews ports.PreviewStore
	Location *time.Location
	MaxBytes int64
	// PostsURL : cible du proxy /uploads/
	PostsURL string
}

func NewServer(opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	target, err := url.Parse(opts.PostsURL)
	if err != nil {
		return nil, fmt.Errorf("posts url: %w", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = otelhttp.NewTransport(http.DefaultTransport)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Warn("Upload proxy failed", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}

	return &Server{
		sessions: opts.Sessions,
		posts:    opts.Posts,
		previews: opts.Previews,
		loc:      opts.Location,
		maxBytes: opts.MaxBytes,
		uploads:  proxy,
		tmpl:     tmpl,
	}, nil
}

// Handler expose les routes du navigateur.
func (s *Server) Handler() http.Handler {
	r := way.NewRouter()

	r.HandleFunc("GET", "/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.HandleFunc("GET", "/detail", s.detailPage)
	r.HandleFunc("GET", "/detail.html", s.detailPage)
	r.HandleFunc("GET", "/preview/:handle", s.previewImage)
	r.Handle("GET", "/uploads...", s.uploads)

	r.HandleFunc("POST", "/refresh", s.refresh)
	r.HandleFunc("POST", "/preview", s.selectImage)
	r.HandleFunc("POST", "/posts", s.submit)

	r.HandleFunc("GET", "/index.html", s.feedPage)
	r.HandleFunc("GET", "/", s.feedPage)

	return r
}

// --- PAGE LISTE ---

// feedPage est un chargement de page : statut vidé, liste relue.
// Après la redirection d'un envoi, la page est rendue telle quelle.
func (s *Server) feedPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}

	ctrl, carried, ok := s.sessions.Open(r)
	if !ok {
		// Visiteur sans session : instance jetable, rien n'est gardé
		ctrl = s.sessions.NewTransient()
		defer ctrl.Close(r.Context())
	}
	if !carried {
		ctrl.ClearStatus()
		ctrl.LoadList(r.Context())
	}
	s.renderFeed(w, ctrl)
}

// refresh relit la liste sans toucher au brouillon du formulaire.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readForm(w, r)
	if !ok {
		return
	}
	ctrl := s.sessions.Feed(w, r).ctrl
	in.applyDraft(r.Context(), ctrl)
	ctrl.Refresh(r.Context())
	s.renderFeed(w, ctrl)
}

// selectImage correspond au changement du champ fichier.
func (s *Server) selectImage(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readForm(w, r)
	if !ok {
		return
	}
	ctrl := s.sessions.Feed(w, r).ctrl
	ctrl.SetCaption(in.caption)
	ctrl.SelectImage(r.Context(), in.image)
	s.renderFeed(w, ctrl)
}

// submit suit Post/Redirect/Get : recharger la page ne renvoie pas le fichier.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readForm(w, r)
	if !ok {
		return
	}
	sess := s.sessions.Feed(w, r)
	sess.ctrl.SetCaption(in.caption)
	sess.ctrl.Submit(r.Context(), ports.SubmitInput{Image: in.image, Caption: in.caption})

	s.sessions.Carry(sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) previewImage(w http.ResponseWriter, r *http.Request) {
	handle := way.Param(r.Context(), "handle")
	p, err := s.previews.Get(r.Context(), handle)
	if errors.Is(err, domain.ErrPreviewNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("Failed to load preview", "handle", handle, "error", err)
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", p.ThumbType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(p.Thumb)
}

// --- PAGE DÉTAIL ---

// detailPage : une instance de page par chargement.
func (s *Server) detailPage(w http.ResponseWriter, r *http.Request) {
	doc := page.NewDetail()
	ctrl := services.NewDetailController(doc, s.posts, s.loc)
	ctrl.Load(r.Context(), r.URL)
	s.render(w, "detail.html", ctrl.Snapshot())
}

// --- Helpers ---

type feedView struct {
	page.Feed
	Hint   string
	Accept string
}

func (s *Server) renderFeed(w http.ResponseWriter, ctrl *services.FeedController) {
	s.render(w, "feed.html", feedView{
		Feed:   ctrl.Snapshot(),
		Hint:   page.TextPreviewHint,
		Accept: ".jpg,.jpeg,.png,.webp",
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template execution failed", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// formInput est ce que le navigateur envoie avec le formulaire.
type formInput struct {
	image      *domain.Image
	caption    string
	hasCaption bool
}

// applyDraft garde le brouillon envoyé sans déclencher d'action.
func (in formInput) applyDraft(ctx context.Context, ctrl *services.FeedController) {
	if in.hasCaption {
		ctrl.SetCaption(in.caption)
	}
	if in.image != nil {
		ctrl.SelectImage(ctx, in.image)
	}
}

// readForm lit le formulaire (multipart ou urlencoded) ; un fichier absent donne image == nil.
func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (formInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+formOverhead)
	err := r.ParseMultipartForm(formOverhead)
	if errors.Is(err, http.ErrNotMultipart) {
		_, has := r.PostForm["caption"]
		return formInput{caption: r.PostForm.Get("caption"), hasCaption: has}, true
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, domain.ErrPreviewTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return formInput{}, false
		}
		http.Error(w, "invalid form", http.StatusBadRequest)
		return formInput{}, false
	}

	_, has := r.PostForm["caption"]
	in := formInput{caption: r.PostForm.Get("caption"), hasCaption: has}

	f, fh, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, true
	}
	if err != nil {
		http.Error(w, "invalid image", http.StatusBadRequest)
		return formInput{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "invalid image", http.StatusBadRequest)
		return formInput{}, false
	}
	if len(data) == 0 {
		return in, true
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = domain.ContentTypeFor(fh.Filename)
	}
	in.image = &domain.Image{Filename: fh.Filename, ContentType: contentType, Data: data}
	return in, true
}
