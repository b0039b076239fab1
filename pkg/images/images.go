// Package images stores uploaded recipe covers: it verifies the payload
// really decodes as an image, renames it to something random and writes it
// to the cover directory.
package images

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Covers wider than this are scaled down before saving.
const maxCoverWidth = 1280

var allowedExts = map[string]bool{
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// Save validates and stores an uploaded cover, returning the generated file
// name. The original file name only contributes its extension.
func Save(r io.Reader, originalName, dir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExts[ext] {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > maxCoverWidth {
		img = imaging.Resize(img, maxCoverWidth, 0, imaging.Lanczos)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "")[:16] + ext
	if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return name, nil
}
