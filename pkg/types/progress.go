package types

import "time"

// ProgressEvent is a coalesced byte-level progress notification
type ProgressEvent struct {
	Total  int64 `json:"total"`  // bytes discovered so far
	Worked int64 `json:"worked"` // bytes processed so far
}

// Percent returns the processed share in the [0, 100] range
func (p ProgressEvent) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Worked) * 100 / float64(p.Total)
}

// SearchStats contains counters gathered by the walker.
// The engine passes them through without interpreting them.
type SearchStats struct {
	FilesScanned int64         `json:"files_scanned"`
	FilesSkipped int64         `json:"files_skipped"`
	DirsVisited  int64         `json:"dirs_visited"`
	Errors       int64         `json:"errors"`
	BytesFound   int64         `json:"bytes_found"`
	Duration     time.Duration `json:"duration"`
}

// Completion is passed to the done callback when a search finishes
type Completion struct {
	LimitHit bool          `json:"limit_hit"`
	Canceled bool          `json:"canceled"`
	Bytes    ProgressEvent `json:"bytes"` // final accounting; Worked equals Total
	Stats    SearchStats   `json:"stats"`
}
