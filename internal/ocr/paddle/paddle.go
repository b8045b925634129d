// Package paddle adapts an external PaddleOCR command to the engine contract.
//
// The configured command receives the image on stdin plus --mode, --lang and
// --dpi flags, and must print a single JSON document on stdout:
//
//	{"regions": [{"text": "...", "confidence": 0.98,
//	              "box": [[x,y],[x,y],[x,y],[x,y]]}, ...],
//	 "language": "en"}
//
// On failure it exits nonzero and may report {"error": "...", "code": "..."}
// instead, where code is one of unrecognizable, unsupported or busy.
package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

var commandContext = exec.CommandContext

// Options configures the engine.
type Options struct {
	// Command is the wrapper invocation, split on whitespace. The first field
	// is the binary, the rest become leading arguments.
	Command string
	// Languages are the default hints for requests that carry none.
	Languages []string
}

// Engine implements ocr.Engine by shelling out per request.
type Engine struct {
	binary string
	args   []string
	opts   Options
}

// New constructs a PaddleOCR-backed engine.
func New(opts Options) *Engine {
	fields := strings.Fields(opts.Command)
	if len(fields) == 0 {
		fields = []string{"paddleocr"}
	}
	return &Engine{binary: fields[0], args: fields[1:], opts: opts}
}

func (e *Engine) Name() string { return "paddle" }

// Recognize runs one image through the configured command. Cancelling ctx
// kills the subprocess.
func (e *Engine) Recognize(ctx context.Context, req ocr.Request) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	start := time.Now()

	mode := req.Mode
	if mode == "" {
		mode = ocr.ModeBasic
	}
	languages := req.Languages
	if len(languages) == 0 {
		languages = e.opts.Languages
	}

	args := append(append([]string(nil), e.args...), "--mode", string(mode))
	if len(languages) > 0 {
		args = append(args, "--lang", strings.Join(languages, ","))
	}
	if req.DPI > 0 {
		args = append(args, "--dpi", fmt.Sprint(req.DPI))
	}

	cmd := commandContext(ctx, e.binary, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(req.Content)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	report(req.Progress, 10)
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return ocr.Result{}, ctx.Err()
	}
	if runErr != nil {
		var exit *exec.ExitError
		if errors.As(runErr, &exit) {
			if failure, ok := decodeFailure(stdout.Bytes()); ok {
				return ocr.Result{}, ocr.Wrap(classify(failure.Code), e.Name(), "recognize", failure.Error, nil)
			}
			return ocr.Result{}, ocr.Wrap(ocr.ErrTransient, e.Name(), "recognize", tail(stderr.String()), runErr)
		}
		return ocr.Result{}, ocr.Wrap(ocr.ErrUnsupported, e.Name(), "start", e.binary, runErr)
	}
	report(req.Progress, 85)

	var response payload
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return ocr.Result{}, ocr.Wrap(ocr.ErrTransient, e.Name(), "parse output", "", err)
	}
	if response.Error != "" {
		return ocr.Result{}, ocr.Wrap(classify(response.Code), e.Name(), "recognize", response.Error, nil)
	}

	result := convert(response, mode)
	if result.Language == "" && len(languages) > 0 {
		result.Language = languages[0]
	}
	report(req.Progress, 95)

	result.Duration = time.Since(start)
	return result, nil
}

type payload struct {
	Regions  []region `json:"regions"`
	Language string   `json:"language"`
	Error    string   `json:"error"`
	Code     string   `json:"code"`
}

type region struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        [][2]float64 `json:"box"`
}

func decodeFailure(output []byte) (payload, bool) {
	var p payload
	if err := json.Unmarshal(output, &p); err != nil || p.Error == "" {
		return payload{}, false
	}
	return p, true
}

func classify(code string) error {
	switch code {
	case "unrecognizable":
		return ocr.ErrUnrecognizable
	case "unsupported":
		return ocr.ErrUnsupported
	case "busy":
		return ocr.ErrBusy
	default:
		return ocr.ErrTransient
	}
}

// convert maps the line-level regions PaddleOCR produces onto the result
// layout. Paddle does not segment blocks or words, so non-basic modes yield a
// single block whose lines carry no word detail.
func convert(p payload, mode ocr.Mode) ocr.Result {
	result := ocr.Result{Language: p.Language}
	if len(p.Regions) == 0 {
		return result
	}

	texts := make([]string, 0, len(p.Regions))
	lines := make([]ocr.Line, 0, len(p.Regions))
	var sum float64
	for _, r := range p.Regions {
		texts = append(texts, r.Text)
		sum += r.Confidence
		lines = append(lines, ocr.Line{
			Text:       r.Text,
			Bounds:     polygonBounds(r.Box),
			Confidence: r.Confidence,
		})
	}

	result.PlainText = strings.Join(texts, "\n")
	result.Confidence = sum / float64(len(p.Regions))
	if mode != ocr.ModeBasic {
		result.Blocks = []ocr.Block{{
			Text:       result.PlainText,
			Bounds:     lineBounds(lines),
			Lines:      lines,
			Confidence: result.Confidence,
		}}
	}
	return result
}

// polygonBounds reduces a quadrilateral to its axis-aligned bounding box.
func polygonBounds(points [][2]float64) ocr.Region {
	if len(points) == 0 {
		return ocr.Region{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, pt := range points {
		minX = math.Min(minX, pt[0])
		minY = math.Min(minY, pt[1])
		maxX = math.Max(maxX, pt[0])
		maxY = math.Max(maxY, pt[1])
	}
	return ocr.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func lineBounds(lines []ocr.Line) ocr.Region {
	if len(lines) == 0 {
		return ocr.Region{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, l := range lines {
		minX = math.Min(minX, l.Bounds.X)
		minY = math.Min(minY, l.Bounds.Y)
		maxX = math.Max(maxX, l.Bounds.X+l.Bounds.Width)
		maxY = math.Max(maxY, l.Bounds.Y+l.Bounds.Height)
	}
	return ocr.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func tail(output string) string {
	trimmed := strings.TrimSpace(output)
	if len(trimmed) <= 300 {
		return trimmed
	}
	return "..." + trimmed[len(trimmed)-300:]
}

func report(progress func(float64), percent float64) {
	if progress != nil {
		progress(percent)
	}
}
