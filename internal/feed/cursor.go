// Package feed defines the ranking orders of the post feed and the opaque
// keyset cursor that marks a position within one of them.
package feed

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedCursor is returned for cursors that were not produced by EncodeCursor.
var ErrMalformedCursor = errors.New("malformed cursor")

// Cursor is the position after the last row of a page: the ranking metric
// of that row and its post id as tie-break. For the id order Metric equals TieBreak.
type Cursor struct {
	Metric   int64
	TieBreak uint
}

var cursorEncoding = base64.RawURLEncoding

// EncodeCursor renders a cursor as an opaque URL-safe token.
func EncodeCursor(metric int64, tieBreak uint) string {
	raw := strconv.FormatInt(metric, 10) + ":" + strconv.FormatUint(uint64(tieBreak), 10)
	return cursorEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. Both fields must be
// non-negative base-10 integers.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := cursorEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrMalformedCursor
	}

	metricPart, tiePart, ok := strings.Cut(string(raw), ":")
	if !ok || !isDigits(metricPart) || !isDigits(tiePart) {
		return Cursor{}, ErrMalformedCursor
	}

	metric, err := strconv.ParseInt(metricPart, 10, 64)
	if err != nil {
		return Cursor{}, ErrMalformedCursor
	}
	tie, err := strconv.ParseUint(tiePart, 10, strconv.IntSize)
	if err != nil {
		return Cursor{}, ErrMalformedCursor
	}
	return Cursor{Metric: metric, TieBreak: uint(tie)}, nil
}

// isDigits rejects signs, spaces and empty fields that strconv would accept or misreport.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
