package types

// Range is a half-open byte range [Start, End) within a line's text
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// LineMatch is a single matching line inside a file
type LineMatch struct {
	LineNumber int     `json:"line_number"` // 1-based
	Ranges     []Range `json:"ranges"`
	Text       string  `json:"text"`
}

// FileMatch holds every matching line found in one file.
// A FileMatch surfaced to callers always has at least one LineMatch.
type FileMatch struct {
	Path        string      `json:"path"`
	LineMatches []LineMatch `json:"line_matches"`
}

// HasMatches reports whether the file match carries any line matches
func (fm *FileMatch) HasMatches() bool {
	return fm != nil && len(fm.LineMatches) > 0
}

// NumMatches returns the total number of matched ranges across all lines
func (fm *FileMatch) NumMatches() int {
	n := 0
	for _, lm := range fm.LineMatches {
		n += len(lm.Ranges)
	}
	return n
}

// Validate checks if the file match is valid
func (fm *FileMatch) Validate() error {
	if fm.Path == "" {
		return ErrEmptyPath
	}
	if len(fm.LineMatches) == 0 {
		return ErrNoLineMatches
	}
	for i := range fm.LineMatches {
		if err := fm.LineMatches[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks if the line match is valid
func (lm *LineMatch) Validate() error {
	if lm.LineNumber < 1 {
		return ErrInvalidLineNumber
	}
	for _, r := range lm.Ranges {
		if r.Start < 0 || r.End < r.Start {
			return ErrInvalidRange
		}
	}
	return nil
}
