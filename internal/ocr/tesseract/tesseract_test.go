package tesseract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func box(block, par, line int, word string, conf float64, r image.Rectangle) gosseract.BoundingBox {
	return gosseract.BoundingBox{
		Box:        r,
		Word:       word,
		Confidence: conf,
		BlockNum:   block,
		ParNum:     par,
		LineNum:    line,
	}
}

func TestGroupBoxesBuildsHierarchy(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		box(1, 1, 1, "Hello", 90, image.Rect(10, 10, 60, 25)),
		box(1, 1, 1, "world", 80, image.Rect(70, 10, 120, 25)),
		box(1, 1, 2, "below", 70, image.Rect(10, 30, 60, 45)),
		box(2, 1, 1, "footer", 60, image.Rect(10, 100, 70, 115)),
	}

	blocks, confidence := groupBoxes(boxes)

	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	first := blocks[0]
	if len(first.Lines) != 2 {
		t.Fatalf("expected 2 lines in first block, got %d", len(first.Lines))
	}
	if first.Lines[0].Text != "Hello world" {
		t.Errorf("line text = %q, want %q", first.Lines[0].Text, "Hello world")
	}
	if first.Text != "Hello world\nbelow" {
		t.Errorf("block text = %q, want %q", first.Text, "Hello world\nbelow")
	}
	if got := first.Lines[0].Confidence; got < 0.84 || got > 0.86 {
		t.Errorf("line confidence = %v, want 0.85", got)
	}
	if got := confidence; got < 0.74 || got > 0.76 {
		t.Errorf("overall confidence = %v, want 0.75", got)
	}

	bounds := first.Lines[0].Bounds
	want := ocr.Region{X: 10, Y: 10, Width: 110, Height: 15}
	if bounds != want {
		t.Errorf("line bounds = %+v, want %+v", bounds, want)
	}

	second := blocks[1]
	if len(second.Lines) != 1 || second.Lines[0].Text != "footer" {
		t.Fatalf("unexpected second block: %+v", second)
	}
}

func TestGroupBoxesSplitsLinesAcrossParagraphs(t *testing.T) {
	// Same line number in a new paragraph must start a fresh line.
	boxes := []gosseract.BoundingBox{
		box(1, 1, 1, "para1", 90, image.Rect(0, 0, 40, 10)),
		box(1, 2, 1, "para2", 90, image.Rect(0, 20, 40, 30)),
	}

	blocks, _ := groupBoxes(boxes)

	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if len(blocks[0].Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(blocks[0].Lines))
	}
}

func TestGroupBoxesEmpty(t *testing.T) {
	blocks, confidence := groupBoxes(nil)
	if blocks != nil || confidence != 0 {
		t.Fatalf("expected empty result, got blocks=%v confidence=%v", blocks, confidence)
	}
}

func TestSpanMergesRegions(t *testing.T) {
	got := span([]ocr.Region{
		{X: 10, Y: 10, Width: 20, Height: 10},
		{X: 50, Y: 30, Width: 10, Height: 10},
	})
	want := ocr.Region{X: 10, Y: 10, Width: 50, Height: 30}
	if got != want {
		t.Fatalf("span = %+v, want %+v", got, want)
	}
}

func TestRectRegion(t *testing.T) {
	got := rectRegion(image.Rect(5, 10, 25, 40))
	want := ocr.Region{X: 5, Y: 10, Width: 20, Height: 30}
	if got != want {
		t.Fatalf("rectRegion = %+v, want %+v", got, want)
	}
}

func TestRecognizeHonoursCancelledContext(t *testing.T) {
	engine := New(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Recognize(ctx, ocr.Request{Content: []byte("ignored")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRecognizeReadsRenderedText(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString("Hello World")

	var buf bytes.Buffer
	if err := (png.Encoder{}).Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	engine := New(Options{Languages: []string{"eng"}})
	if engine.Name() != "tesseract" {
		t.Fatalf("unexpected engine name %q", engine.Name())
	}

	var percents []float64
	res, err := engine.Recognize(context.Background(), ocr.Request{
		Content:  buf.Bytes(),
		Mode:     ocr.ModeStructure,
		DPI:      300,
		Progress: func(p float64) { percents = append(percents, p) },
	})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	got := strings.ToLower(res.PlainText)
	if !strings.Contains(got, "hello") || !strings.Contains(got, "world") {
		t.Fatalf("unexpected OCR output: %q", res.PlainText)
	}
	if len(res.Blocks) == 0 || len(res.Blocks[0].Lines) == 0 {
		t.Fatalf("expected structured blocks, got %+v", res.Blocks)
	}
	if res.Language != "eng" {
		t.Errorf("language = %q, want eng", res.Language)
	}
	if res.Duration <= 0 {
		t.Errorf("duration not recorded")
	}
	if len(percents) == 0 {
		t.Errorf("no progress reported")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %v", percents)
		}
	}
}
