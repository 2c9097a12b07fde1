package brightness

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func uniformRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestComputeBlockBrightness_UniformImage(t *testing.T) {
	for _, v := range []uint8{0, 1, 77, 200, 255} {
		for _, block := range []int{1, 3, 7, 10, 23} {
			g, err := ComputeBlockBrightness(uniformGray(23, 17, v), block)
			if err != nil {
				t.Fatalf("v=%d block=%d: %v", v, block, err)
			}
			for i, c := range g.Cells {
				if c != float64(v) {
					t.Fatalf("v=%d block=%d cell %d=%v", v, block, i, c)
				}
			}
		}
	}
}

func TestComputeBlockBrightness_ColorUniformMatchesGray(t *testing.T) {
	g, err := ComputeBlockBrightness(uniformRGBA(20, 20, color.RGBA{R: 130, G: 130, B: 130, A: 255}), 10)
	if err != nil {
		t.Fatalf("ComputeBlockBrightness: %v", err)
	}
	want := []float64{130, 130, 130, 130}
	if diff := cmp.Diff(want, g.Cells); diff != "" {
		t.Fatalf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeBlockBrightness_ShapeAndEdgeBlocks(t *testing.T) {
	// 25x12 image at block 10 -> 2 rows x 3 cols; last column is 5 px wide,
	// last row 2 px tall.
	img := image.NewGray(image.Rect(0, 0, 25, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 25; x++ {
			if x >= 20 {
				img.SetGray(x, y, color.Gray{Y: 90})
			} else if y >= 10 {
				img.SetGray(x, y, color.Gray{Y: 30})
			} else {
				img.SetGray(x, y, color.Gray{Y: 60})
			}
		}
	}
	g, err := ComputeBlockBrightness(img, 10)
	if err != nil {
		t.Fatalf("ComputeBlockBrightness: %v", err)
	}
	if g.Rows != 2 || g.Cols != 3 || g.Block != 10 {
		t.Fatalf("shape=%dx%d block=%d want 2x3 block=10", g.Rows, g.Cols, g.Block)
	}
	want := []float64{60, 60, 90, 30, 30, 90}
	if diff := cmp.Diff(want, g.Cells); diff != "" {
		t.Fatalf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeBlockBrightness_MixedBlockMean(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	copy(img.Pix, []uint8{0, 100, 200, 60})
	g, err := ComputeBlockBrightness(img, 2)
	if err != nil {
		t.Fatalf("ComputeBlockBrightness: %v", err)
	}
	if len(g.Cells) != 1 || g.Cells[0] != 90 {
		t.Fatalf("cells=%v want [90]", g.Cells)
	}
}

func TestComputeBlockBrightness_SubImageOrigin(t *testing.T) {
	full := uniformGray(40, 40, 10)
	for y := 20; y < 40; y++ {
		for x := 20; x < 40; x++ {
			full.SetGray(x, y, color.Gray{Y: 250})
		}
	}
	sub := full.SubImage(image.Rect(20, 20, 40, 40))
	g, err := ComputeBlockBrightness(sub, 10)
	if err != nil {
		t.Fatalf("ComputeBlockBrightness: %v", err)
	}
	if diff := cmp.Diff([]float64{250, 250, 250, 250}, g.Cells); diff != "" {
		t.Fatalf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeBlockBrightness_InvalidParameter(t *testing.T) {
	img := uniformGray(4, 4, 1)
	for _, block := range []int{0, -10} {
		if _, err := ComputeBlockBrightness(img, block); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("block=%d err=%v want ErrInvalidParameter", block, err)
		}
	}
	if _, err := ComputeBlockBrightness(image.NewGray(image.Rect(0, 0, 0, 5)), 10); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err=%v want ErrInvalidParameter for empty image", err)
	}
	if _, err := ComputeBlockBrightness(nil, 10); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err=%v want ErrInvalidParameter for nil image", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		before, after float64
		want          Status
	}{
		{200, 50, Outage},
		{100, 99.9, Outage},
		{50, 200, Restored},
		{99.9, 100, Restored},
		{200, 150, Unchanged},
		{20, 40, Unchanged},
		{100, 100, Unchanged},
	}
	for _, tc := range cases {
		if got := Classify(tc.before, tc.after, 100); got != tc.want {
			t.Fatalf("Classify(%v,%v)=%s want %s", tc.before, tc.after, got, tc.want)
		}
	}
}

func TestClassifyGrid_OutageScenario(t *testing.T) {
	before, err := ComputeBlockBrightness(uniformGray(20, 20, 200), 10)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	after, err := ComputeBlockBrightness(uniformGray(20, 20, 50), 10)
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	sg, err := ClassifyGrid(before, after, 100)
	if err != nil {
		t.Fatalf("ClassifyGrid: %v", err)
	}
	if sg.Rows != 2 || sg.Cols != 2 {
		t.Fatalf("shape=%dx%d want 2x2", sg.Rows, sg.Cols)
	}
	if diff := cmp.Diff([]Status{Outage, Outage, Outage, Outage}, sg.Cells); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
	if c := sg.Counts(); c != (Counts{Outage: 4}) {
		t.Fatalf("counts=%+v", c)
	}
}

func TestClassifyGrid_SwapIsSymmetric(t *testing.T) {
	a := Grid{Rows: 2, Cols: 3, Block: 10, Cells: []float64{0, 50, 100, 150, 200, 255}}
	b := Grid{Rows: 2, Cols: 3, Block: 10, Cells: []float64{255, 120, 99, 150, 10, 101}}
	fwd, err := ClassifyGrid(a, b, 100)
	if err != nil {
		t.Fatalf("ClassifyGrid: %v", err)
	}
	rev, err := ClassifyGrid(b, a, 100)
	if err != nil {
		t.Fatalf("ClassifyGrid: %v", err)
	}
	for i := range fwd.Cells {
		want := fwd.Cells[i]
		switch want {
		case Outage:
			want = Restored
		case Restored:
			want = Outage
		}
		if rev.Cells[i] != want {
			t.Fatalf("cell %d: fwd=%s rev=%s", i, fwd.Cells[i], rev.Cells[i])
		}
	}
}

func TestClassifyGrid_DimensionMismatch(t *testing.T) {
	a := Grid{Rows: 3, Cols: 3, Block: 10, Cells: make([]float64, 9)}
	b := Grid{Rows: 4, Cols: 4, Block: 10, Cells: make([]float64, 16)}
	if _, err := ClassifyGrid(a, b, 100); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err=%v want ErrDimensionMismatch", err)
	}
}

func TestStatusString(t *testing.T) {
	if Unchanged.String() != "Same" || Outage.String() != "Outage" || Restored.String() != "Restored" {
		t.Fatalf("labels=%s,%s,%s", Unchanged, Outage, Restored)
	}
}

func TestTotalDifference(t *testing.T) {
	a := Grid{Rows: 1, Cols: 3, Block: 10, Cells: []float64{10, 200, 50}}
	b := Grid{Rows: 1, Cols: 3, Block: 10, Cells: []float64{30, 100, 50}}
	got, err := TotalDifference(a, b)
	if err != nil {
		t.Fatalf("TotalDifference: %v", err)
	}
	if got != 120 {
		t.Fatalf("total=%v want 120", got)
	}
	if rev, _ := TotalDifference(b, a); rev != got {
		t.Fatalf("total not symmetric: %v vs %v", rev, got)
	}
	if _, err := TotalDifference(a, Grid{Rows: 3, Cols: 1, Cells: make([]float64, 3)}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err=%v want ErrDimensionMismatch", err)
	}
}

func TestCompare(t *testing.T) {
	before := uniformGray(30, 20, 40)
	after := uniformGray(30, 20, 40)
	// Light up the top-left block, darken the bottom-right one.
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			after.SetGray(x, y, color.Gray{Y: 180})
		}
	}
	for y := 10; y < 20; y++ {
		for x := 20; x < 30; x++ {
			before.SetGray(x, y, color.Gray{Y: 220})
		}
	}
	res, err := Compare(before, after, Params{BlockSize: 10, Threshold: 100, TotalThreshold: 200})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	want := []Status{Restored, Unchanged, Unchanged, Unchanged, Unchanged, Outage}
	if diff := cmp.Diff(want, res.Status.Cells); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
	if res.Total != 140+180 {
		t.Fatalf("total=%v want 320", res.Total)
	}
	if !res.GlobalEvent {
		t.Fatalf("expected global event above threshold")
	}
	if res.Counts != (Counts{Unchanged: 4, Outage: 1, Restored: 1}) {
		t.Fatalf("counts=%+v", res.Counts)
	}
}

func TestCompare_DefaultsBlockSizeAndRejectsMismatch(t *testing.T) {
	res, err := Compare(uniformGray(20, 20, 10), uniformGray(20, 20, 10), Params{Threshold: 100})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Before.Block != DefaultBlockSize || res.GlobalEvent {
		t.Fatalf("block=%d global=%v", res.Before.Block, res.GlobalEvent)
	}
	if _, err := Compare(uniformGray(20, 20, 10), uniformGray(30, 20, 10), Params{Threshold: 100}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err=%v want ErrDimensionMismatch", err)
	}
}
