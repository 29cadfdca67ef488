package matcher

import (
	"strings"
	"testing"
)

func BenchmarkMatchContent(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		sb.WriteString("func handler(w http.ResponseWriter, r *http.Request) { // TODO\n")
	}
	data := []byte(sb.String())

	benchmarks := []struct {
		name    string
		pattern Pattern
	}{
		{"Literal", Pattern{Expr: "TODO", CaseSensitive: true}},
		{"Insensitive", Pattern{Expr: "todo"}},
		{"RegExp", Pattern{Expr: `http\.\w+`, IsRegExp: true}},
	}

	for _, bm := range benchmarks {
		m, err := bm.pattern.Compile()
		if err != nil {
			b.Fatal(err)
		}
		b.Run(bm.name, func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := m.MatchContent(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
