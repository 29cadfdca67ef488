package matcher

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/dshills/contentsearch/pkg/types"
)

// binarySniffLen is how much of a file is inspected for NUL bytes
const binarySniffLen = 8 * 1024

var (
	ErrEmptyPattern    = errors.New("pattern expression cannot be empty")
	ErrUnknownEncoding = errors.New("unknown encoding")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Pattern describes what a worker looks for. It is comparable so it can key
// the compiled-matcher cache.
type Pattern struct {
	Expr          string `json:"expr"`
	IsRegExp      bool   `json:"is_regexp,omitempty"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	WordMatch     bool   `json:"word_match,omitempty"`
	Encoding      string `json:"encoding,omitempty"` // WHATWG label, empty = UTF-8
}

// Matcher is a compiled Pattern. It is safe for concurrent use.
type Matcher struct {
	pattern Pattern
	re      *regexp.Regexp
	enc     encoding.Encoding // nil for UTF-8
}

// Compile builds a Matcher for the pattern
func (p Pattern) Compile() (*Matcher, error) {
	if p.Expr == "" {
		return nil, ErrEmptyPattern
	}

	expr := p.Expr
	if !p.IsRegExp {
		expr = regexp.QuoteMeta(expr)
	}
	if p.WordMatch {
		expr = `\b(?:` + expr + `)\b`
	}
	if !p.CaseSensitive {
		expr = `(?i)` + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", p.Expr, err)
	}

	m := &Matcher{pattern: p, re: re}
	if label := strings.TrimSpace(p.Encoding); label != "" && !isUTF8Label(label) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, label)
		}
		m.enc = enc
	}
	return m, nil
}

// Pattern returns the pattern the matcher was compiled from
func (m *Matcher) Pattern() Pattern {
	return m.pattern
}

// SearchFiles runs the matcher over each path in order and returns only files
// with at least one matching line. Unreadable and binary files are skipped.
// maxResults <= 0 means no cap on the number of file matches.
func (m *Matcher) SearchFiles(paths []string, maxResults int) []types.FileMatch {
	var out []types.FileMatch
	for _, path := range paths {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		fm, err := m.SearchFile(path)
		if err != nil || fm == nil {
			continue
		}
		out = append(out, *fm)
	}
	return out
}

// SearchFile returns the line matches in one file, or nil if there are none
func (m *Matcher) SearchFile(path string) (*types.FileMatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines, err := m.MatchContent(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return &types.FileMatch{Path: path, LineMatches: lines}, nil
}

// MatchContent decodes raw file bytes and returns the matching lines
func (m *Matcher) MatchContent(data []byte) ([]types.LineMatch, error) {
	if m.enc == nil {
		if isBinary(data) {
			return nil, nil
		}
		data = bytes.TrimPrefix(data, utf8BOM)
	} else {
		decoded, err := m.enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		data = bytes.TrimPrefix(decoded, utf8BOM)
	}

	var matches []types.LineMatch
	lineNo := 0
	for len(data) > 0 {
		lineNo++
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})

		idx := m.re.FindAllIndex(line, -1)
		if len(idx) == 0 {
			continue
		}
		ranges := make([]types.Range, 0, len(idx))
		for _, loc := range idx {
			if loc[0] == loc[1] {
				// empty matches carry no highlight
				continue
			}
			ranges = append(ranges, types.Range{Start: loc[0], End: loc[1]})
		}
		if len(ranges) == 0 {
			continue
		}
		matches = append(matches, types.LineMatch{
			LineNumber: lineNo,
			Ranges:     ranges,
			Text:       string(line),
		})
	}
	return matches, nil
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

func isUTF8Label(label string) bool {
	switch strings.ToLower(label) {
	case "utf8", "utf-8", "unicode-1-1-utf-8":
		return true
	}
	return false
}
