// Package imagefile loads and saves the frames the brightness comparison
// works on.
package imagefile

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used for .jpg/.jpeg output.
const JPEGQuality = 92

// Load decodes any registered format (JPEG, PNG, GIF, BMP, TIFF, WebP).
func Load(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("imagefile: open %s: %w", path, err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("imagefile: decode %s: %w", path, err)
	}
	return img, format, nil
}

// Save encodes img as PNG or JPEG depending on the extension of path,
// creating the parent directory if needed.
func Save(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("imagefile: image is nil")
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		return fmt.Errorf("imagefile: unsupported output extension %q (want .png, .jpg or .jpeg)", ext)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("imagefile: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imagefile: create %s: %w", path, err)
	}
	if ext == ".png" {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("imagefile: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("imagefile: close %s: %w", path, err)
	}
	return nil
}
