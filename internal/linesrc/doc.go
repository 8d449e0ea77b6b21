// Package linesrc reads text line by line while counting lines.
//
// A LineReader returns one line per ReadLine call and reports, through
// LineNumber, how many lines it has returned so far: 0 before the first read,
// then the 1-based number of the line just returned. "\n", "\r\n" and "\r"
// each end exactly one line; terminators are not part of the returned text.
// End of input is reported as io.EOF.
//
// New builds a LineReader from heterogeneous inputs by consulting an ordered
// table of factories (see Register). A source that already counts lines is
// adopted as is, so wrapping never double-counts.
//
// Lines adapts a LineReader to a has-next/next sequence with one line of
// look-ahead.
package linesrc
