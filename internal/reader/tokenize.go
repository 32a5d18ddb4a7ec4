package reader

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dekarrin/fiberhost/internal/hosterr"
)

// TokenKind classifies a line of the indented document.
type TokenKind int

const (
	// Default is a plain "key: value" or "key:" dictionary entry line.
	Default TokenKind = iota
	// List is a "- value" or "- key: value" list entry line.
	List
	// Block is a "| text" block-continuation line.
	Block
)

// Token is one tokenized line.
type Token struct {
	Data  *String
	Depth int
	Key   *String
	Kind  TokenKind
	Value *String
}

const whitespace = " "

// Tokenize normalizes raw source to NFC, scans it for non-ASCII
// characters (each contiguous run becomes a warning), and splits it
// into indentation-aware Tokens. Returned errors are Syntactic
// hosterr.Errors.
func Tokenize(name, raw string) (*Source, []Token, []error, []error) {
	normalized := norm.NFC.String(raw)
	src := NewSource(name, normalized)

	var errs, warnings []error
	var tokens []Token

	if !isASCII(normalized) {
		warnings = append(warnings, scanNonASCII(src)...)
	}

	offset := 0
	for _, line := range splitKeepOffsets(normalized) {
		lineErrs, tok, consumed := tokenizeLine(src, line.text, offset)
		errs = append(errs, lineErrs...)
		if tok != nil {
			tokens = append(tokens, *tok)
		}
		_ = consumed
		offset = line.end
	}

	return src, tokens, errs, warnings
}

type rawLine struct {
	text  string
	start int
	end   int
}

// splitKeepOffsets splits text on "\n" while tracking each line's absolute
// start offset (needed because comment/whitespace stripping shifts the
// column but not the line's position in the document).
func splitKeepOffsets(text string) []rawLine {
	var out []rawLine
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			out = append(out, rawLine{text: text[start:i], start: start, end: i + 1})
			start = i + 1
		}
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// scanNonASCII walks each line looking for contiguous runs of non-ASCII
// characters and emits one warning per run, matching reader.py's behavior.
func scanNonASCII(src *Source) []error {
	var warnings []error
	offset := 0

	for _, line := range strings.Split(src.Text, "\n") {
		if isASCII(line) {
			offset += len(line) + 1
			continue
		}

		startIdx := -1
		runeOffset := 0
		for _, r := range line {
			w := len(string(r))
			if r > 127 {
				if startIdx < 0 {
					startIdx = runeOffset
				}
			} else if startIdx >= 0 {
				warnings = append(warnings, hosterr.At(hosterr.Syntactic,
					Range{Source: src, Start: offset + startIdx, End: offset + runeOffset},
					"non-ASCII characters"))
				startIdx = -1
			}
			runeOffset += w
		}
		if startIdx >= 0 {
			warnings = append(warnings, hosterr.At(hosterr.Syntactic,
				Range{Source: src, Start: offset + startIdx, End: offset + len(line)},
				"non-ASCII characters"))
		}

		offset += len(line) + 1
	}

	return warnings
}

func tokenizeLine(src *Source, line string, lineStart int) ([]error, *Token, bool) {
	var errs []error

	if h := strings.IndexByte(line, '#'); h >= 0 {
		line = line[:h]
	}
	line = strings.TrimRight(line, whitespace)

	trimmedLen := len(strings.TrimLeft(line, whitespace))
	indent := len(line) - trimmedLen

	if indent%2 != 0 {
		errs = append(errs, hosterr.At(hosterr.Syntactic,
			Range{Source: src, Start: lineStart + indent, End: lineStart + len(line)},
			"odd indentation is not allowed"))
		return errs, nil, false
	}

	if len(line) == indent {
		return errs, nil, false
	}

	mk := func(start, end int) *String {
		return &String{Raw: line[start:end], Rng: Range{Source: src, Start: lineStart + start, End: lineStart + end}}
	}

	offset := indent
	tok := &Token{Data: mk(offset, len(line)), Depth: indent / 2, Kind: Default}

	if line[offset] == '|' {
		tok.Kind = Block
		tok.Value = mk(offset, len(line))
		return errs, tok, true
	}

	if line[offset] == '-' {
		offset = nextOffset(line, offset)
		tok.Kind = List
	}

	colon := strings.IndexByte(line[offset:], ':')
	if colon >= 0 {
		colon += offset
		keyEnd := colon
		for keyEnd > offset && line[keyEnd-1] == ' ' {
			keyEnd--
		}

		if keyEnd <= offset {
			errs = append(errs, hosterr.At(hosterr.Syntactic,
				Range{Source: src, Start: lineStart + offset, End: lineStart + colon},
				"missing key before ':'"))
			return errs, nil, false
		}

		tok.Key = mk(offset, keyEnd)

		valueOffset := nextOffset(line, colon)
		if valueOffset < len(line) {
			tok.Value = mk(valueOffset, len(line))
		}
	} else if tok.Kind == List {
		tok.Value = mk(offset, len(line))
	} else {
		errs = append(errs, hosterr.At(hosterr.Syntactic,
			Range{Source: src, Start: lineStart + offset, End: lineStart + len(line)},
			"line is neither a dictionary entry, list entry, nor block continuation"))
		return errs, nil, false
	}

	return errs, tok, true
}

// nextOffset skips exactly one marker character (the '-' of a list entry, or
// the ':' of a key) and any whitespace following it, returning the offset of
// the first non-whitespace character after it (or len(line) if none).
func nextOffset(line string, origin int) int {
	rest := line[origin+1:]
	trimmed := strings.TrimLeft(rest, whitespace)
	return origin + 1 + (len(rest) - len(trimmed))
}
