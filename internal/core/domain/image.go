package domain

import (
	"path/filepath"
	"strings"
)

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// CheckImage reproduit le filtre du Posts Service avant tout envoi.
func CheckImage(img *Image, maxBytes int64) error {
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(img.Filename))]; !ok {
		return ErrUnsupportedImage
	}
	if maxBytes > 0 && int64(len(img.Data)) > maxBytes {
		return ErrPreviewTooLarge
	}
	return nil
}

// ContentTypeFor devine le type MIME depuis l'extension quand le navigateur n'en envoie pas.
func ContentTypeFor(filename string) string {
	if ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}
