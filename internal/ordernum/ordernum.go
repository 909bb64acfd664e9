// Package ordernum issues human-readable order numbers of the form
// T-<year>-<4-digit sequence>. The sequence restarts every year.
package ordernum

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tailorhub/tailorhub/internal/shared"
)

// Width is the fixed number of sequence digits. Lexical and numeric ordering of
// numbers within a year only agree while every number has this width.
const Width = 4

// MaxSequence is the last sequence number a year can issue.
const MaxSequence = 9999

var (
	// ErrSequenceExhausted is returned once a year has issued MaxSequence orders.
	ErrSequenceExhausted = fmt.Errorf("%w: yearly order sequence exhausted", shared.ErrConflict)
	// ErrMalformed is returned for numbers that do not match the format.
	ErrMalformed = errors.New("ordernum: malformed order number")
)

// Prefix returns the number prefix for year, e.g. "T-2025-".
func Prefix(year int) string {
	return "T-" + strconv.Itoa(year) + "-"
}

// Format renders sequence seq for year.
func Format(year, seq int) string {
	return fmt.Sprintf("%s%0*d", Prefix(year), Width, seq)
}

// Next derives the number after lastIssued. An empty lastIssued, or one from a
// different year, starts the year's sequence at 0001. lastIssued must be the
// highest number issued so far, compared by sequence value.
func Next(lastIssued string, year int) (string, error) {
	prefix := Prefix(year)
	if lastIssued == "" || !strings.HasPrefix(lastIssued, prefix) {
		return Format(year, 1), nil
	}
	seq, err := parseSequence(strings.TrimPrefix(lastIssued, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, lastIssued)
	}
	if seq >= MaxSequence {
		return "", fmt.Errorf("%w: %d reached %d", ErrSequenceExhausted, year, MaxSequence)
	}
	return Format(year, seq+1), nil
}

// Parse splits an order number into year and sequence.
func Parse(number string) (year, seq int, err error) {
	rest, ok := strings.CutPrefix(number, "T-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	yearPart, seqPart, ok := strings.Cut(rest, "-")
	if !ok || len(yearPart) != 4 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	year, err = strconv.Atoi(yearPart)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	seq, err = parseSequence(seqPart)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", err, number)
	}
	return year, seq, nil
}

func parseSequence(s string) (int, error) {
	if len(s) != Width {
		return 0, ErrMalformed
	}
	seq, err := strconv.Atoi(s)
	if err != nil || seq < 0 {
		return 0, ErrMalformed
	}
	return seq, nil
}
