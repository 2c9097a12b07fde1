package brightness

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	legendDPI      = 72
	legendFontSize = 14
	legendPadding  = 4
)

var (
	legendFontOnce sync.Once
	legendFont     *truetype.Font
	legendFontErr  error
)

func parsedLegendFont() (*truetype.Font, error) {
	legendFontOnce.Do(func() {
		legendFont, legendFontErr = freetype.ParseFont(goregular.TTF)
	})
	return legendFont, legendFontErr
}

// Annotate stamps a one-line legend with the block counts in the top-left
// corner of img.
func Annotate(img *image.RGBA, counts Counts) error {
	if img == nil {
		return fmt.Errorf("brightness: annotate: image is nil: %w", ErrInvalidParameter)
	}
	f, err := parsedLegendFont()
	if err != nil {
		return fmt.Errorf("brightness: parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(legendDPI)
	ctx.SetFont(f)
	ctx.SetFontSize(legendFontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)
	ctx.SetSrc(image.White)

	text := LegendText(counts)
	lineHeight := ctx.PointToFixed(legendFontSize).Ceil()
	origin := img.Bounds().Min

	// Dark band behind the text so it reads on bright frames.
	band := image.Rect(origin.X, origin.Y, img.Bounds().Max.X, origin.Y+lineHeight+2*legendPadding).Intersect(img.Bounds())
	draw.Draw(img, band, image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Over)

	pt := freetype.Pt(origin.X+legendPadding, origin.Y+legendPadding+lineHeight)
	if _, err := ctx.DrawString(text, pt); err != nil {
		return fmt.Errorf("brightness: drawing legend: %w", err)
	}
	return nil
}

func LegendText(c Counts) string {
	return fmt.Sprintf("outage %d  restored %d  same %d", c.Outage, c.Restored, c.Unchanged)
}
