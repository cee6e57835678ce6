// Package render formats plans, run summaries, and cache inspection
// output for the terminal. Presentation only; no business logic.
package render

import (
	"fmt"
	"io"
	"os"
)

// Writer wraps an io.Writer with small formatting helpers used by the
// CLI commands.
type Writer struct {
	out io.Writer
}

// NewWriter creates a Writer targeting w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w}
}

// Stdout returns a Writer for os.Stdout.
func Stdout() *Writer {
	return NewWriter(os.Stdout)
}

// Print writes formatted text.
func (w *Writer) Print(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

// Println writes formatted text with a trailing newline.
func (w *Writer) Println(format string, args ...any) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Line writes a blank line.
func (w *Writer) Line() {
	fmt.Fprintln(w.out)
}

// Item writes an indented item line.
func (w *Writer) Item(format string, args ...any) {
	fmt.Fprintf(w.out, "  "+format+"\n", args...)
}

// SubItem writes a double-indented sub-item.
func (w *Writer) SubItem(format string, args ...any) {
	fmt.Fprintf(w.out, "    "+format+"\n", args...)
}

// StatusIcon returns the marker for a task status.
func StatusIcon(status string) string {
	switch status {
	case "success":
		return "✓"
	case "failed":
		return "✗"
	case "skipped", "canceled":
		return "-"
	case "running":
		return "►"
	default:
		return "•"
	}
}

// CacheIcon returns the marker for a cache outcome.
func CacheIcon(status string) string {
	switch status {
	case "local", "remote":
		return "»"
	case "miss":
		return "○"
	default:
		return " "
	}
}
