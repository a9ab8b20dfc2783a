// Package output provides consistent CLI output formatting with colors and progress indicators.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a new output Writer. Color is enabled when out is a
// terminal and NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return &Writer{
		out:      out,
		useColor: detectColor(out),
	}
}

// detectColor reports whether colored output is appropriate for out.
func detectColor(out io.Writer) bool {
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ANSI color codes used when the terminal supports them.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// colorize wraps msg in the given color when enabled.
func (w *Writer) colorize(color, msg string) string {
	if !w.useColor {
		return msg
	}
	return color + msg + colorReset
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.Status(icon, msg)
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.colorize(colorGreen, msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.colorize(colorYellow, msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.colorize(colorRed, msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a code block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	// Indent each line
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints a progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	// Use carriage return for in-place updates
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	// Add newline when complete
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone completes a progress line with newline.
func (w *Writer) ProgressDone() {
	_, _ = fmt.Fprintln(w.out)
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))

	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
