// Package ui styles terminal output for the harvest CLI.
package ui

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/law-makers/harvest/pkg/models"
)

// Style is an ANSI SGR sequence.
type Style string

const (
	Reset  Style = "\033[0m"
	Strong Style = "\033[1m"
	Faint  Style = "\033[2m"
	Red    Style = "\033[31m"
	Green  Style = "\033[32m"
	Yellow Style = "\033[33m"
	Cyan   Style = "\033[36m"
	White  Style = "\033[97m"
)

var colorOn = detectColor()

// detectColor honours NO_COLOR and TERM=dumb and otherwise colors only terminals.
func detectColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetColor forces styling on or off.
func SetColor(on bool) { colorOn = on }

// ColorEnabled reports whether Paint emits escape sequences.
func ColorEnabled() bool { return colorOn }

// Paint wraps s in the given styles, or returns it untouched when color is off.
func Paint(s string, styles ...Style) string {
	if !colorOn || len(styles) == 0 || s == "" {
		return s
	}
	var b strings.Builder
	for _, st := range styles {
		b.WriteString(string(st))
	}
	b.WriteString(s)
	b.WriteString(string(Reset))
	return b.String()
}

func Bold(s string) string    { return Paint(s, Strong) }
func Success(s string) string { return Paint(s, Green) }
func Error(s string) string   { return Paint(s, Red) }
func Info(s string) string    { return Paint(s, Faint, Yellow) }
func Dim(s string) string     { return Paint(s, Faint) }
func Accent(s string) string  { return Paint(s, Cyan) }
func Heading(s string) string { return Paint(s, Strong, White) }

// Status colors a job or target status: green when finished, red when it
// gave up, yellow while work is outstanding.
func Status(s string) string {
	switch s {
	case string(models.JobCompleted), string(models.TargetDone):
		return Success(s)
	case string(models.JobFailed), string(models.JobTimedOut):
		return Error(s)
	case string(models.JobRunning), string(models.TargetInProgress):
		return Paint(s, Yellow)
	}
	return s
}

// Rule is a horizontal divider of the given width.
func Rule(width int) string {
	if width <= 0 {
		return ""
	}
	return Dim(strings.Repeat("━", width))
}
