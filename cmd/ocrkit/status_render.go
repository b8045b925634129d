package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

// renderStatusLine formats one "Label: [KIND] detail" row of the status
// report, optionally wrapped in the kind's ANSI color.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge := "[" + kind.label() + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	if !colorize {
		return line
	}
	color := kind.color()
	if color == "" {
		return line
	}
	return color + line + colorReset
}

// renderKV formats a plain "Label: value" row without a status badge.
func renderKV(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

func (k statusKind) label() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return colorGreen
	case statusWarn:
		return colorYellow
	case statusError:
		return colorRed
	case statusInfo:
		return colorBlue
	default:
		return ""
	}
}

// sectionHeader renders a "== Title ==" banner with an underline rule.
func sectionHeader(title string, colorize bool) string {
	banner := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(banner))
	if colorize {
		return colorBlue + banner + colorReset + "\n" + colorBlue + rule + colorReset
	}
	return banner + "\n" + rule
}

func shouldColorize(writer io.Writer) bool {
	return writerIsTerminal(writer)
}

func writerIsTerminal(writer io.Writer) bool {
	if file, ok := writer.(*os.File); ok {
		return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
	}
	return false
}
