// Package types provides shared type definitions for contentsearch.
//
// This package defines the domain types that cross component boundaries: the
// file descriptors produced by the walker, the batches handed to workers, the
// matches workers return, and the progress and completion values reported to
// callers of the search engine.
//
// # Matches
//
// FileMatch groups every matching line of one file:
//
//	fm := types.FileMatch{
//	    Path: "/src/project/main.go",
//	    LineMatches: []types.LineMatch{{
//	        LineNumber: 12,
//	        Ranges:     []types.Range{{Start: 4, End: 11}},
//	        Text:       "\tfmt.Println(greeting)",
//	    }},
//	}
//
// A FileMatch delivered by the engine always has at least one LineMatch;
// Validate enforces this:
//
//	if err := fm.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Ranges are byte offsets into the (UTF-8) line text, half-open.
//
// # Byte Accounting
//
// FileDescriptor.AccountedSize never returns less than one, so that empty
// files still move the processed-bytes counter:
//
//	fd := types.FileDescriptor{Path: "/tmp/empty.txt", Size: 0}
//	fd.AccountedSize() // 1
//
// # Completion
//
// Completion carries the limit-hit and canceled flags plus the walker's
// SearchStats, which are passed through verbatim.
package types
