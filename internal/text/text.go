// Package text provides small string and path helpers shared across chore.
package text

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Truncate shortens s to at most n characters, appending an ellipsis.
func Truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Slash normalizes a path to forward slashes regardless of platform.
// All repo-relative paths in hashes and cache entries use this form.
func Slash(path string) string {
	return filepath.ToSlash(path)
}

// FormatBytes renders a byte count in human-readable form.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// SanitizeFilename turns a task identifier like "web#build" into a string
// safe to use as a file name component.
func SanitizeFilename(s string) string {
	r := strings.NewReplacer("#", "__", "/", "_", "\\", "_", ":", "_")
	return r.Replace(s)
}
