package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/contentsearch/pkg/types"
)

func writeFile(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, content, 0644))
	return p
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		line    string
		want    []types.Range
	}{
		{
			name:    "literal case insensitive",
			pattern: Pattern{Expr: "todo"},
			line:    "// TODO: fix todo",
			want:    []types.Range{{Start: 3, End: 7}, {Start: 13, End: 17}},
		},
		{
			name:    "literal case sensitive",
			pattern: Pattern{Expr: "todo", CaseSensitive: true},
			line:    "// TODO: fix todo",
			want:    []types.Range{{Start: 13, End: 17}},
		},
		{
			name:    "literal metacharacters are quoted",
			pattern: Pattern{Expr: "a.b"},
			line:    "axb a.b",
			want:    []types.Range{{Start: 4, End: 7}},
		},
		{
			name:    "regexp",
			pattern: Pattern{Expr: `err\w*`, IsRegExp: true, CaseSensitive: true},
			line:    "if err != nil { return errFoo }",
			want:    []types.Range{{Start: 3, End: 6}, {Start: 23, End: 29}},
		},
		{
			name:    "word match",
			pattern: Pattern{Expr: "log", WordMatch: true},
			line:    "logger.log(catalog)",
			want:    []types.Range{{Start: 7, End: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.pattern.Compile()
			require.NoError(t, err)

			lines, err := m.MatchContent([]byte(tt.line))
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.want, lines[0].Ranges)
			assert.Equal(t, 1, lines[0].LineNumber)
			assert.Equal(t, tt.line, lines[0].Text)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Pattern{}.Compile()
	assert.ErrorIs(t, err, ErrEmptyPattern)

	_, err = Pattern{Expr: "(", IsRegExp: true}.Compile()
	assert.Error(t, err)

	_, err = Pattern{Expr: "x", Encoding: "klingon"}.Compile()
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestMatchContent_LineNumbersAndCRLF(t *testing.T) {
	m, err := Pattern{Expr: "needle"}.Compile()
	require.NoError(t, err)

	content := "hay\r\nneedle one\r\nhay\r\n\r\nanother needle\r\n"
	lines, err := m.MatchContent([]byte(content))
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].LineNumber)
	assert.Equal(t, "needle one", lines[0].Text)
	assert.Equal(t, 5, lines[1].LineNumber)
	assert.Equal(t, "another needle", lines[1].Text)
}

func TestMatchContent_SkipsBinary(t *testing.T) {
	m, err := Pattern{Expr: "ELF"}.Compile()
	require.NoError(t, err)

	lines, err := m.MatchContent([]byte("\x7fELF\x00\x01\x02"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestMatchContent_EmptyMatchesIgnored(t *testing.T) {
	m, err := Pattern{Expr: "x*", IsRegExp: true}.Compile()
	require.NoError(t, err)

	lines, err := m.MatchContent([]byte("abc\nxx\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].LineNumber)
}

func TestMatchContent_Windows1252(t *testing.T) {
	m, err := Pattern{Expr: "café", Encoding: "windows-1252"}.Compile()
	require.NoError(t, err)

	lines, err := m.MatchContent([]byte("un caf\xe9 noir"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "un café noir", lines[0].Text)
	assert.Equal(t, []types.Range{{Start: 3, End: 8}}, lines[0].Ranges)
}

func TestMatchContent_UTF16LE(t *testing.T) {
	m, err := Pattern{Expr: "hello", Encoding: "utf-16le"}.Compile()
	require.NoError(t, err)

	var data []byte
	for _, r := range "say hello\n" {
		data = append(data, byte(r), 0)
	}

	lines, err := m.MatchContent(data)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "say hello", lines[0].Text)
}

func TestSearchFile(t *testing.T) {
	dir := t.TempDir()
	hit := writeFile(t, dir, "hit.txt", []byte("alpha\nbeta\n"))
	miss := writeFile(t, dir, "miss.txt", []byte("gamma\n"))

	m, err := Pattern{Expr: "beta"}.Compile()
	require.NoError(t, err)

	fm, err := m.SearchFile(hit)
	require.NoError(t, err)
	require.NotNil(t, fm)
	assert.Equal(t, hit, fm.Path)
	require.NoError(t, fm.Validate())

	fm, err = m.SearchFile(miss)
	require.NoError(t, err)
	assert.Nil(t, fm)

	_, err = m.SearchFile(filepath.Join(dir, "gone.txt"))
	assert.Error(t, err)
}

func TestSearchFiles_OrderAndCap(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("match"))
	b := writeFile(t, dir, "b.txt", []byte("nothing"))
	c := writeFile(t, dir, "c.txt", []byte("match match"))
	d := writeFile(t, dir, "d.txt", []byte("match"))

	m, err := Pattern{Expr: "match"}.Compile()
	require.NoError(t, err)

	all := m.SearchFiles([]string{a, b, filepath.Join(dir, "missing"), c, d}, 0)
	require.Len(t, all, 3)
	assert.Equal(t, a, all[0].Path)
	assert.Equal(t, c, all[1].Path)
	assert.Equal(t, d, all[2].Path)

	capped := m.SearchFiles([]string{a, b, c, d}, 2)
	assert.Len(t, capped, 2)
}

func TestCache(t *testing.T) {
	c := NewCache(2)

	p1 := Pattern{Expr: "one"}
	m1, err := c.Get(p1)
	require.NoError(t, err)
	again, err := c.Get(p1)
	require.NoError(t, err)
	assert.Same(t, m1, again)

	_, err = c.Get(Pattern{Expr: "two"})
	require.NoError(t, err)
	_, err = c.Get(Pattern{Expr: "three"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.Get(Pattern{Expr: "(", IsRegExp: true})
	assert.Error(t, err)
	assert.Equal(t, 2, c.Len())
}
