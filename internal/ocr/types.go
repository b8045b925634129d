package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Mode selects the recognition profile applied to a request.
type Mode string

const (
	// ModeBasic favours throughput: plain text only, no layout analysis.
	ModeBasic Mode = "basic"
	// ModeAccurate runs the slower high-quality pass with layout blocks.
	ModeAccurate Mode = "accurate"
	// ModeStructure additionally reconstructs block/line/word geometry.
	ModeStructure Mode = "structure"
)

var allModes = []Mode{ModeBasic, ModeAccurate, ModeStructure}

var modeSet = func() map[Mode]struct{} {
	set := make(map[Mode]struct{}, len(allModes))
	for _, mode := range allModes {
		set[mode] = struct{}{}
	}
	return set
}()

// AllModes returns the ordered list of known recognition modes.
func AllModes() []Mode {
	cp := make([]Mode, len(allModes))
	copy(cp, allModes)
	return cp
}

// ParseMode converts a string into a known Mode.
func ParseMode(value string) (Mode, bool) {
	normalized := Mode(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := modeSet[normalized]
	return normalized, ok
}

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Request encapsulates a single image submitted for recognition.
type Request struct {
	// Content is the encoded image payload.
	Content []byte
	// Mode selects the recognition profile.
	Mode Mode
	// Languages is a list of language hints (e.g. "eng", "deu") that engines
	// can use to select trained data. Empty means engine default.
	Languages []string
	// DPI carries the effective dots-per-inch for the image. Engines use this
	// for scaling heuristics; zero means unknown.
	DPI int
	// Progress, when non-nil, receives coarse completion percentages in the
	// range [0,100] while the engine works. Engines that cannot report
	// incremental progress may never call it.
	Progress func(percent float64)
}

// Word represents a single recognized token.
type Word struct {
	Text       string  `json:"text"`
	Bounds     Region  `json:"bounds"`
	Confidence float64 `json:"confidence"`
}

// Line groups words that share a baseline.
type Line struct {
	Text       string  `json:"text"`
	Bounds     Region  `json:"bounds"`
	Words      []Word  `json:"words,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Block aggregates lines that form a logical unit (paragraph, heading, table cell).
type Block struct {
	Text       string  `json:"text"`
	Bounds     Region  `json:"bounds"`
	Lines      []Line  `json:"lines,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Result captures recognition output for a single request.
type Result struct {
	// PlainText contains the linearized text extracted from the image.
	PlainText string `json:"plain_text"`
	// Blocks carries the structured layout with positional metadata. Only
	// populated for modes that perform layout analysis.
	Blocks []Block `json:"blocks,omitempty"`
	// Confidence is the mean word confidence in [0,1], or zero when unknown.
	Confidence float64 `json:"confidence"`
	// Language indicates the dominant language detected, if known.
	Language string `json:"language,omitempty"`
	// Duration records how long the engine spent on this request.
	Duration time.Duration `json:"duration_ns"`
}

// Size estimates the in-memory footprint of the result in bytes. The cache
// uses it to enforce its byte budget, so it only needs to be proportional,
// not exact.
func (r *Result) Size() int64 {
	if r == nil {
		return 0
	}
	size := int64(len(r.PlainText)) + int64(len(r.Language)) + 64
	for bi := range r.Blocks {
		block := &r.Blocks[bi]
		size += int64(len(block.Text)) + 48
		for li := range block.Lines {
			line := &block.Lines[li]
			size += int64(len(line.Text)) + 48
			for wi := range line.Words {
				size += int64(len(line.Words[wi].Text)) + 48
			}
		}
	}
	return size
}

// Engine is the recognition provider contract: one image in, one result out.
// Recognize must honour ctx cancellation; the worker pool relies on it to
// abandon work that has exceeded its wall-clock budget.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request) (Result, error)
}

// Fingerprint derives the cache key for a piece of content processed under a
// given mode. Identical content submitted under different modes must not
// share results, so the mode participates in the hash.
func Fingerprint(mode Mode, content []byte) string {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
