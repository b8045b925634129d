// Package tesseract adapts a local Tesseract installation to the engine
// contract through gosseract.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

// Options configures the engine.
type Options struct {
	// Languages are the default hints for requests that carry none.
	Languages []string
	// TessdataDir overrides the trained-data location when set.
	TessdataDir string
}

// Engine implements ocr.Engine. A fresh client is created per request;
// gosseract clients are not safe for concurrent reuse.
type Engine struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs one image through Tesseract. The native call cannot be
// interrupted, so ctx is honoured at the phase boundaries only.
func (e *Engine) Recognize(ctx context.Context, req ocr.Request) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	start := time.Now()

	client := e.clientFactory()
	defer client.Close()

	if e.opts.TessdataDir != "" {
		if err := client.SetTessdataPrefix(e.opts.TessdataDir); err != nil {
			return ocr.Result{}, ocr.Wrap(ocr.ErrUnsupported, e.Name(), "set tessdata", e.opts.TessdataDir, err)
		}
	}
	languages := req.Languages
	if len(languages) == 0 {
		languages = e.opts.Languages
	}
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return ocr.Result{}, ocr.Wrap(ocr.ErrUnsupported, e.Name(), "set languages", strings.Join(languages, "+"), err)
		}
	}
	if err := client.SetImageFromBytes(req.Content); err != nil {
		return ocr.Result{}, ocr.Wrap(ocr.ErrUnrecognizable, e.Name(), "set image", "", err)
	}
	if req.DPI > 0 {
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(req.DPI)); err != nil {
			return ocr.Result{}, ocr.Wrap(ocr.ErrTransient, e.Name(), "set dpi", "", err)
		}
	}
	report(req.Progress, 10)

	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	text, err := client.Text()
	if err != nil {
		return ocr.Result{}, ocr.Wrap(ocr.ErrUnrecognizable, e.Name(), "recognize", "", err)
	}
	report(req.Progress, 70)

	result := ocr.Result{
		PlainText: strings.TrimSpace(text),
		Language:  firstLanguage(languages),
	}

	switch req.Mode {
	case ocr.ModeAccurate:
		words, conf := wordBoxes(client)
		result.Confidence = conf
		if len(words) > 0 {
			bounds := wordSpan(words)
			result.Blocks = []ocr.Block{{
				Text:       result.PlainText,
				Bounds:     bounds,
				Lines:      []ocr.Line{{Text: result.PlainText, Bounds: bounds, Words: words, Confidence: conf}},
				Confidence: conf,
			}}
		}
	case ocr.ModeStructure:
		boxes, berr := client.GetBoundingBoxesVerbose()
		if berr == nil {
			result.Blocks, result.Confidence = groupBoxes(boxes)
		}
	default:
		// Basic mode is text only; geometry extraction is skipped for
		// throughput.
	}
	report(req.Progress, 95)

	result.Duration = time.Since(start)
	return result, nil
}

func wordBoxes(client *gosseract.Client) ([]ocr.Word, float64) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	words := make([]ocr.Word, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		conf := b.Confidence / 100
		sum += conf
		words = append(words, ocr.Word{
			Text:       b.Word,
			Bounds:     rectRegion(b.Box),
			Confidence: conf,
		})
	}
	return words, sum / float64(len(words))
}

// groupBoxes folds word-level verbose boxes into the block/line/word
// hierarchy. Boxes arrive in reading order, so grouping is a single pass on
// the block and line numbers.
func groupBoxes(boxes []gosseract.BoundingBox) ([]ocr.Block, float64) {
	if len(boxes) == 0 {
		return nil, 0
	}

	type lineID struct{ block, par, line int }
	var blocks []ocr.Block
	curBlock := -1
	curLine := lineID{-1, -1, -1}
	var total float64

	for _, b := range boxes {
		conf := b.Confidence / 100
		total += conf
		word := ocr.Word{Text: b.Word, Bounds: rectRegion(b.Box), Confidence: conf}

		if b.BlockNum != curBlock {
			blocks = append(blocks, ocr.Block{})
			curBlock = b.BlockNum
			curLine = lineID{-1, -1, -1}
		}
		block := &blocks[len(blocks)-1]

		id := lineID{b.BlockNum, b.ParNum, b.LineNum}
		if id != curLine {
			block.Lines = append(block.Lines, ocr.Line{})
			curLine = id
		}
		line := &block.Lines[len(block.Lines)-1]
		line.Words = append(line.Words, word)
	}

	for bi := range blocks {
		block := &blocks[bi]
		var lineTexts []string
		var blockConf float64
		for li := range block.Lines {
			line := &block.Lines[li]
			var texts []string
			var conf float64
			for _, w := range line.Words {
				texts = append(texts, w.Text)
				conf += w.Confidence
			}
			line.Text = strings.Join(texts, " ")
			line.Bounds = wordSpan(line.Words)
			line.Confidence = conf / float64(len(line.Words))
			lineTexts = append(lineTexts, line.Text)
			blockConf += line.Confidence
		}
		block.Text = strings.Join(lineTexts, "\n")
		block.Bounds = lineSpan(block.Lines)
		block.Confidence = blockConf / float64(len(block.Lines))
	}

	return blocks, total / float64(len(boxes))
}

func rectRegion(r image.Rectangle) ocr.Region {
	return ocr.Region{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

func wordSpan(words []ocr.Word) ocr.Region {
	regions := make([]ocr.Region, len(words))
	for i, w := range words {
		regions[i] = w.Bounds
	}
	return span(regions)
}

func lineSpan(lines []ocr.Line) ocr.Region {
	regions := make([]ocr.Region, len(lines))
	for i, l := range lines {
		regions[i] = l.Bounds
	}
	return span(regions)
}

func span(regions []ocr.Region) ocr.Region {
	if len(regions) == 0 {
		return ocr.Region{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	var maxX, maxY float64
	for _, r := range regions {
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.X+r.Width)
		maxY = math.Max(maxY, r.Y+r.Height)
	}
	return ocr.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func firstLanguage(languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	return languages[0]
}

func report(progress func(float64), percent float64) {
	if progress != nil {
		progress(percent)
	}
}
