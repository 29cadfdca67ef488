// Package matcher implements the content matching done inside a search worker.
//
// A Pattern is compiled once into a Matcher (RE2 syntax; literal patterns are
// quoted). Files are read whole, binary files are skipped, and non-UTF-8
// encodings named by a WHATWG label are decoded before matching:
//
//	m, err := matcher.Pattern{Expr: "TODO", WordMatch: true}.Compile()
//	fm, err := m.SearchFile("/src/main.go")
//
// Ranges in the returned LineMatch values are byte offsets into the decoded
// UTF-8 line text.
package matcher
