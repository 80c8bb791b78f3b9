// Package ranges holds the comparisons the text service makes between
// host ranges. Nothing here keeps state.
package ranges

import "textservice/internal/host"

// Covered reports whether test lies within cover. Any comparison failure
// counts as not covered.
func Covered(ec host.EditCookie, test, cover host.Range) bool {
	if test == nil || cover == nil {
		return false
	}
	start, err := cover.CompareStart(ec, test, host.AnchorStart)
	if err != nil || start > 0 {
		return false
	}
	end, err := cover.CompareEnd(ec, test, host.AnchorEnd)
	if err != nil || end < 0 {
		return false
	}
	return true
}

// Direction is a caret movement direction.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Right {
		return "right"
	}
	return "left"
}

// Step moves sel one character in dir without crossing the matching
// boundary of bound, then collapses it onto the moved anchor. A failed
// comparison leaves the anchor where it is.
func Step(ec host.EditCookie, sel, bound host.Range, dir Direction) error {
	if dir == Left {
		if cmp, err := sel.CompareStart(ec, bound, host.AnchorStart); err == nil && cmp > 0 {
			if _, err := sel.ShiftStart(ec, -1); err != nil {
				return err
			}
		}
		return sel.Collapse(ec, host.AnchorStart)
	}

	if cmp, err := sel.CompareEnd(ec, bound, host.AnchorEnd); err == nil && cmp < 0 {
		if _, err := sel.ShiftEnd(ec, 1); err != nil {
			return err
		}
	}
	return sel.Collapse(ec, host.AnchorEnd)
}
