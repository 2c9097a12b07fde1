package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"flatsat/internal/brightness"
	"flatsat/internal/config"
	"flatsat/internal/imagefile"
	"flatsat/internal/report"
)

const (
	statusCSVName = "brightness_status.csv"
	diffCSVName   = "brightness_diff.csv"
	overlayName   = "outage_overlay.png"
	diffName      = "brightness_diff.png"
)

// compareImages runs the block comparison and writes the status table, the
// overlay on the after image and the per-block difference image to outDir.
func compareImages(beforePath, afterPath, outDir string, bc config.BrightnessConfig) (brightness.Result, error) {
	before, _, err := imagefile.Load(beforePath)
	if err != nil {
		return brightness.Result{}, err
	}
	after, _, err := imagefile.Load(afterPath)
	if err != nil {
		return brightness.Result{}, err
	}

	res, err := brightness.Compare(before, after, brightness.Params{
		BlockSize:      bc.BlockSize,
		Threshold:      bc.Threshold,
		TotalThreshold: bc.TotalThreshold,
	})
	if err != nil {
		return brightness.Result{}, err
	}

	csvPath := filepath.Join(outDir, statusCSVName)
	if err := report.WriteFile(csvPath, func(w io.Writer) error {
		return report.WriteStatusCSV(w, res.Status)
	}); err != nil {
		return res, err
	}
	if err := report.WriteFile(filepath.Join(outDir, diffCSVName), func(w io.Writer) error {
		return report.WriteDiffCSV(w, res.Before, res.After)
	}); err != nil {
		return res, err
	}

	overlay, err := brightness.RenderOverlay(after, res.Status, res.After.Block)
	if err != nil {
		return res, err
	}
	if bc.Annotate {
		if err := brightness.Annotate(overlay, res.Counts); err != nil {
			return res, err
		}
	}
	if err := imagefile.Save(filepath.Join(outDir, overlayName), overlay); err != nil {
		return res, err
	}

	diff, err := brightness.DiffImage(res.Before, res.After)
	if err != nil {
		return res, err
	}
	if err := imagefile.Save(filepath.Join(outDir, diffName), diff); err != nil {
		return res, err
	}

	log.Printf("compare blocks=%s outage=%d restored=%d same=%d total=%s global_event=%v",
		humanize.Comma(int64(len(res.Status.Cells))), res.Counts.Outage, res.Counts.Restored, res.Counts.Unchanged,
		humanize.CommafWithDigits(res.Total, 1), res.GlobalEvent)
	log.Printf("compare wrote %s", describeOutputs(outDir))
	return res, nil
}

func describeOutputs(outDir string) string {
	return fmt.Sprintf("%s, %s, %s, %s in %s", statusCSVName, diffCSVName, overlayName, diffName, outDir)
}
