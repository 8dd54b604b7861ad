package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrMissingImageOrCaption = errors.New("image and caption are required")
	ErrMissingID             = errors.New("post id missing from page url")
	ErrPreviewNotFound       = errors.New("preview not found")
	ErrPreviewTooLarge       = errors.New("preview image too large")
	ErrUnsupportedImage      = errors.New("only JPG, PNG, WEBP images are allowed")
)

// PostID est opaque : le Posts Service peut renvoyer un nombre ou une chaîne.
type PostID string

func (id *PostID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PostID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = PostID(n.String())
	return nil
}

func (id PostID) String() string { return string(id) }

// Post est détenu par le Posts Service ; le front n'en garde qu'une copie par rendu.
type Post struct {
	ID        PostID
	ImageURL  string
	Caption   string
	CreatedAt time.Time
}

// Image est un fichier choisi dans le formulaire.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (i *Image) Size() int { return len(i.Data) }

// NewPost est la commande de création envoyée en multipart.
type NewPost struct {
	Image   *Image
	Caption string
}

// Validate applique la seule règle côté client : une image et une légende non vide.
func (p NewPost) Validate() error {
	if p.Image == nil || len(p.Image.Data) == 0 || strings.TrimSpace(p.Caption) == "" {
		return ErrMissingImageOrCaption
	}
	return nil
}

// Preview associe le fichier original à sa version d'affichage.
type Preview struct {
	Handle     string
	Original   Image
	Thumb      []byte
	ThumbType  string
	AcquiredAt time.Time
}

// ServiceError est un échec signalé par le Posts Service (statut non-2xx).
// Message est le corps de la réponse, tel quel.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}
