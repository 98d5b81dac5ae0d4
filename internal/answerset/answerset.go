// Package answerset encodes the fixed 20-item survey answer set to and from
// its canonical token, the string used both for persistence and for
// restoring a survey from a shared URL.
package answerset

import (
	"fmt"

	"github.com/raquelitre/Encuesta/internal/apperrors"
)

// Size is the number of survey items.
const Size = 20

// PointsPerItem is the score contributed by each selected item.
const PointsPerItem = 5

// MaxPercent caps the derived match percentage.
const MaxPercent = 100

// AnswerSet holds one flag per survey item. Index i is item i+1.
type AnswerSet [Size]bool

// Valid reports whether token is exactly Size characters of '0' or '1'.
func Valid(token string) bool {
	if len(token) != Size {
		return false
	}
	for i := 0; i < len(token); i++ {
		if token[i] != '0' && token[i] != '1' {
			return false
		}
	}
	return true
}

// Encode returns the canonical token for a.
func Encode(a AnswerSet) string {
	var buf [Size]byte
	for i, selected := range a {
		if selected {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf[:])
}

// Decode parses a canonical token. Tokens failing Valid are rejected with a
// BITS_INVALID validation error.
func Decode(token string) (AnswerSet, error) {
	var a AnswerSet
	if !Valid(token) {
		return a, apperrors.Validation(apperrors.CodeBitsInvalid,
			fmt.Sprintf("expected %d characters of 0 or 1", Size))
	}
	for i := 0; i < Size; i++ {
		a[i] = token[i] == '1'
	}
	return a, nil
}

// FromSelected builds an AnswerSet from 1-based item numbers. Numbers outside
// 1..Size are rejected.
func FromSelected(items []int) (AnswerSet, error) {
	var a AnswerSet
	for _, item := range items {
		if item < 1 || item > Size {
			return a, fmt.Errorf("item %d out of range 1..%d", item, Size)
		}
		a[item-1] = true
	}
	return a, nil
}

// Count returns the number of selected items.
func (a AnswerSet) Count() int {
	n := 0
	for _, selected := range a {
		if selected {
			n++
		}
	}
	return n
}

// Selected returns the 1-based numbers of the selected items in ascending order.
func (a AnswerSet) Selected() []int {
	items := make([]int, 0, Size)
	for i, selected := range a {
		if selected {
			items = append(items, i+1)
		}
	}
	return items
}

// String returns the canonical token.
func (a AnswerSet) String() string {
	return Encode(a)
}

// PercentOf returns the match percentage for a, capped at MaxPercent.
func PercentOf(a AnswerSet) int {
	return clampPercent(a.Count() * PointsPerItem)
}

func clampPercent(p int) int {
	if p > MaxPercent {
		return MaxPercent
	}
	if p < 0 {
		return 0
	}
	return p
}
