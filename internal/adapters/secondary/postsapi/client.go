package postsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
)

const postsPath = "/api/posts"

// Client parle au Posts Service en HTTP (JSON en lecture, multipart en écriture).
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient : timeout à 0 = pas de limite côté client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport), // Injection Trace Context
		},
	}
}

var _ ports.PostsService = (*Client)(nil)

// Contrat JSON du Posts Service
type postDTO struct {
	ID        domain.PostID `json:"id"`
	ImageURL  string        `json:"imageUrl"`
	Caption   string        `json:"caption"`
	CreatedAt string        `json:"createdAt"`
}

func (d postDTO) toDomain() domain.Post {
	return domain.Post{
		ID:        d.ID,
		ImageURL:  d.ImageURL,
		Caption:   d.Caption,
		CreatedAt: parseCreatedAt(d.CreatedAt),
	}
}

func (c *Client) ListPosts(ctx context.Context) ([]domain.Post, error) {
	body, err := c.get(ctx, c.baseURL+postsPath)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	// Tout ce qui n'est pas un tableau compte comme une liste vide
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []domain.Post{}, nil
	}

	var dtos []postDTO
	if err := json.Unmarshal(trimmed, &dtos); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]domain.Post, 0, len(dtos))
	for _, d := range dtos {
		posts = append(posts, d.toDomain())
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id domain.PostID) (*domain.Post, error) {
	body, err := c.get(ctx, c.baseURL+postsPath+"/"+escapeSegment(id.String()))
	if err != nil {
		return nil, err
	}

	var d postDTO
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", id, err)
	}
	post := d.toDomain()
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, post domain.NewPost) error {
	if err := post.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := post.Image.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeFor(post.Image.Filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(post.Image.Filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("multipart image: %w", err)
	}
	if _, err := part.Write(post.Image.Data); err != nil {
		return fmt.Errorf("multipart image: %w", err)
	}
	if err := mw.WriteField("caption", post.Caption); err != nil {
		return fmt.Errorf("multipart caption: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+postsPath, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(resp)
	}
	// Corps ignoré en cas de succès
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// --- Helpers ---

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

// statusError garde le corps texte de la réponse comme raison.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &domain.ServiceError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseCreatedAt : une date illisible donne time.Time{} (affichée vide).
func parseCreatedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// escapeSegment encode l'id comme encodeURIComponent : seuls A-Z a-z 0-9 - _ . ! ~ * ' ( ) restent bruts.
var componentFixer = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

func escapeSegment(s string) string { return componentFixer.Replace(url.QueryEscape(s)) }

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
