package ocr_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		input string
		want  ocr.Mode
		ok    bool
	}{
		{"basic", ocr.ModeBasic, true},
		{" Accurate ", ocr.ModeAccurate, true},
		{"STRUCTURE", ocr.ModeStructure, true},
		{"", "", false},
		{"fast", "", false},
	}
	for _, tc := range cases {
		got, ok := ocr.ParseMode(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseMode(%q) = (%q, %v), want (%q, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFingerprintDistinguishesModes(t *testing.T) {
	content := []byte("scanned page")
	basic := ocr.Fingerprint(ocr.ModeBasic, content)
	accurate := ocr.Fingerprint(ocr.ModeAccurate, content)
	if basic == accurate {
		t.Fatal("expected different fingerprints for different modes")
	}
	if again := ocr.Fingerprint(ocr.ModeBasic, content); again != basic {
		t.Fatalf("fingerprint not deterministic: %s vs %s", basic, again)
	}
	if len(basic) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(basic))
	}
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	a := ocr.Fingerprint(ocr.ModeBasic, []byte("page one"))
	b := ocr.Fingerprint(ocr.ModeBasic, []byte("page two"))
	if a == b {
		t.Fatal("expected different fingerprints for different content")
	}
}

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := ocr.Wrap(ocr.ErrBusy, "tesseract", "recognize", "worker saturated", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ocr.ErrBusy) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"tesseract", "recognize", "worker saturated"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unrecognizable", ocr.Wrap(ocr.ErrUnrecognizable, "paddle", "parse", "garbage", nil), false},
		{"unsupported", ocr.Wrap(ocr.ErrUnsupported, "tesseract", "mode", "structure", nil), false},
		{"busy", ocr.Wrap(ocr.ErrBusy, "paddle", "exec", "overloaded", nil), true},
		{"timeout", ocr.Wrap(ocr.ErrTimeout, "paddle", "exec", "deadline", nil), true},
		{"unknown", errors.New("socket reset"), true},
	}
	for _, tc := range cases {
		if got := ocr.Retryable(tc.err); got != tc.want {
			t.Fatalf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResultSizeGrowsWithContent(t *testing.T) {
	empty := (&ocr.Result{}).Size()
	full := (&ocr.Result{
		PlainText: strings.Repeat("word ", 100),
		Blocks: []ocr.Block{{
			Text:  "block",
			Lines: []ocr.Line{{Text: "line", Words: []ocr.Word{{Text: "word"}}}},
		}},
	}).Size()
	if full <= empty {
		t.Fatalf("expected populated result to report a larger size: empty=%d full=%d", empty, full)
	}
	var nilResult *ocr.Result
	if nilResult.Size() != 0 {
		t.Fatal("expected nil result size to be zero")
	}
}
