package imagefile

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{A: 255})
			}
		}
	}
	return img
}

func TestSaveLoad_PNGIsLossless(t *testing.T) {
	src := checker(16, 8)
	path := filepath.Join(t.TempDir(), "sub", "frame.png")
	if err := Save(path, src); err != nil {
		t.Fatalf("Save: %v", err)
	}
	img, format, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if format != "png" {
		t.Fatalf("format=%q want png", format)
	}
	if img.Bounds() != src.Bounds() {
		t.Fatalf("bounds=%v want %v", img.Bounds(), src.Bounds())
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			r1, g1, b1, a1 := img.At(x, y).RGBA()
			r2, g2, b2, a2 := src.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				t.Fatalf("pixel %d,%d differs", x, y)
			}
		}
	}
}

func TestSaveLoad_JPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.JPG")
	if err := Save(path, checker(32, 32)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	img, format, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if format != "jpeg" || img.Bounds().Dx() != 32 {
		t.Fatalf("format=%q bounds=%v", format, img.Bounds())
	}
}

func TestLoad_BMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.bmp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bmp.Encode(f, checker(8, 8)); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}
	_ = f.Close()
	_, format, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if format != "bmp" {
		t.Fatalf("format=%q want bmp", format)
	}
}

func TestSave_RejectsUnknownExtension(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "frame.gif"), checker(2, 2)); err == nil {
		t.Fatalf("expected error for .gif output")
	}
	if err := Save(filepath.Join(t.TempDir(), "frame.png"), nil); err == nil {
		t.Fatalf("expected error for nil image")
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	junk := filepath.Join(dir, "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(junk); err == nil {
		t.Fatalf("expected decode error")
	}
}
