package preview

import (
	"bytes"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	gonanoid "github.com/matoous/go-nanoid"
	_ "golang.org/x/image/webp" // décodeur WEBP pour image.Decode

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
)

// Taille max de l'aperçu affiché sous le formulaire
const (
	thumbWidth  = 480
	thumbHeight = 480
)

// newPreview valide le fichier choisi, génère un handle et la vignette.
func newPreview(img domain.Image, maxBytes int64, now time.Time) (*domain.Preview, error) {
	if err := domain.CheckImage(&img, maxBytes); err != nil {
		return nil, err
	}
	if img.ContentType == "" {
		img.ContentType = domain.ContentTypeFor(img.Filename)
	}

	handle, err := gonanoid.Nanoid()
	if err != nil {
		return nil, fmt.Errorf("unable to generate preview handle: %w", err)
	}

	thumb, thumbType := thumbnail(img)
	return &domain.Preview{
		Handle:     handle,
		Original:   img,
		Thumb:      thumb,
		ThumbType:  thumbType,
		AcquiredAt: now,
	}, nil
}

// thumbnail réduit l'image ; si elle est illisible on sert les octets d'origine,
// comme un navigateur qui afficherait le fichier tel quel.
func thumbnail(img domain.Image) ([]byte, string) {
	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return img.Data, img.ContentType
	}

	b := src.Bounds()
	if b.Dx() > thumbWidth || b.Dy() > thumbHeight {
		src = imaging.Fit(src, thumbWidth, thumbHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	format, contentType := imaging.PNG, "image/png"
	if img.ContentType == "image/jpeg" {
		format, contentType = imaging.JPEG, "image/jpeg"
	}
	if err := imaging.Encode(&buf, src, format, imaging.JPEGQuality(85)); err != nil {
		return img.Data, img.ContentType
	}
	return buf.Bytes(), contentType
}
