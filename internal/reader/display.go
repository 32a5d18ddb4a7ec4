package reader

import (
	"fmt"
	"math"
	"strings"

	"github.com/dekarrin/rosed"
)

// DisplayOptions configures FormatSource.
type DisplayOptions struct {
	ContextBefore int
	ContextAfter  int
	MessageWidth  int
}

// DefaultDisplayOptions matches reader.py's format_source defaults.
var DefaultDisplayOptions = DisplayOptions{ContextBefore: 4, ContextAfter: 2, MessageWidth: 100}

// FormatSource renders rng's surrounding source lines with a caret
// underline beneath the offending span, the Go equivalent of reader.py's
// format_source/LocatedError.display.
func FormatSource(rng Range, message string, opts DisplayOptions) string {
	if rng.IsZero() {
		return rosed.Edit(message).Wrap(opts.MessageWidth).String()
	}

	start := rng.StartPosition()
	end := rng.EndPosition()
	if start.Line == end.Line && start.Column == end.Column {
		end.Column++
	}

	lines := rng.Source.Lines()
	endLine := end.Line
	if end.Column == 0 && endLine > start.Line {
		endLine--
	}

	width := int(math.Ceil(math.Log10(float64(endLine + 1 + opts.ContextAfter + 1))))
	if width < 1 {
		width = 1
	}

	var b strings.Builder
	b.WriteString(rosed.Edit(message).Wrap(opts.MessageWidth).String())
	b.WriteString("\n")

	for i, line := range lines {
		if i < start.Line-opts.ContextBefore || i > endLine+opts.ContextAfter {
			continue
		}

		fmt.Fprintf(&b, " %s | %s\n", pad(i+1, width), line)

		if i >= start.Line && i <= endLine {
			targetOffset := 0
			if i == start.Line {
				targetOffset = start.Column
			}
			targetWidth := len(line)
			if i == end.Line {
				targetWidth = end.Column
			}
			targetWidth -= targetOffset

			if targetWidth < 0 {
				targetWidth = 0
			}

			fmt.Fprintf(&b, " %s | %s%s\n", strings.Repeat(" ", width), strings.Repeat(" ", targetOffset), strings.Repeat("^", targetWidth))
		}
	}

	return b.String()
}

func pad(n, width int) string {
	s := fmt.Sprintf("%d", n)
	for len(s) < width {
		s = " " + s
	}
	return s
}
