package memhost

import (
	"fmt"
	"weak"

	"github.com/google/uuid"

	"textservice/internal/host"
)

// document is the text behind a context. Every range handed out is tracked
// so its anchors follow edits: a start anchor sitting on the edit point stays
// put, an end anchor sitting on it moves past the inserted text.
type document struct {
	text   []rune
	ranges []weak.Pointer[Range]
	props  map[uuid.UUID]*Property
}

func newDocument(text string) *document {
	return &document{
		text:  []rune(text),
		props: make(map[uuid.UUID]*Property),
	}
}

// track follows r through edits until it is garbage collected.
func (d *document) track(r *Range) {
	d.ranges = append(d.ranges, weak.Make(r))
}

func (d *document) replace(start, end int, s []rune) {
	n := len(s)
	delta := n - (end - start)

	text := make([]rune, 0, len(d.text)+delta)
	text = append(text, d.text[:start]...)
	text = append(text, s...)
	text = append(text, d.text[end:]...)
	d.text = text

	live := d.ranges[:0]
	for _, wp := range d.ranges {
		r := wp.Value()
		if r == nil {
			continue
		}
		live = append(live, wp)
		r.start = moveStart(r.start, start, end, delta)
		r.end = moveEnd(r.end, start, end, n, delta)
		if r.start > r.end {
			r.start = r.end
		}
	}
	clear(d.ranges[len(live):])
	d.ranges = live

	for _, p := range d.props {
		p.splice(start, end, n)
	}
}

func moveStart(a, start, end, delta int) int {
	switch {
	case a <= start:
		return a
	case a >= end:
		return a + delta
	default:
		return start
	}
}

func moveEnd(a, start, end, n, delta int) int {
	switch {
	case a < start:
		return a
	case a >= end:
		return a + delta
	default:
		return start + n
	}
}

// Range is an anchored interval over a context's document.
type Range struct {
	ctx        *Context
	start, end int
}

func (c *Context) newRange(start, end int) *Range {
	r := &Range{ctx: c, start: start, end: end}
	c.doc.track(r)
	return r
}

// NewRange returns a tracked range over [start, end), clamped to the text.
func (c *Context) NewRange(start, end int) *Range {
	r := c.newRange(0, 0)
	r.start, r.end = r.clamp(start), r.clamp(end)
	if r.start > r.end {
		r.start = r.end
	}
	return r
}

// Offsets returns the current anchor positions. It needs no lock and is
// meant for assertions.
func (r *Range) Offsets() (int, int) {
	return r.start, r.end
}

func (r *Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.start, r.end)
}

func (r *Range) peer(with host.Range) (*Range, error) {
	o, ok := with.(*Range)
	if !ok || o == nil || o.ctx.doc != r.ctx.doc {
		return nil, host.ErrIncomparable
	}
	return o, nil
}

func anchorOf(r *Range, a host.Anchor) int {
	if a == host.AnchorEnd {
		return r.end
	}
	return r.start
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// Text returns the covered text.
func (r *Range) Text(ec host.EditCookie) (string, error) {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return "", err
	}
	return string(r.ctx.doc.text[r.start:r.end]), nil
}

// SetText replaces the covered text.
func (r *Range) SetText(ec host.EditCookie, text string) error {
	if err := r.ctx.checkLock(ec, true); err != nil {
		return err
	}
	r.ctx.replace(r.start, r.end, []rune(text))
	return nil
}

// CompareStart compares this range's start with an anchor of with.
func (r *Range) CompareStart(ec host.EditCookie, with host.Range, anchor host.Anchor) (int, error) {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return 0, err
	}
	o, err := r.peer(with)
	if err != nil {
		return 0, err
	}
	return sign(r.start - anchorOf(o, anchor)), nil
}

// CompareEnd compares this range's end with an anchor of with.
func (r *Range) CompareEnd(ec host.EditCookie, with host.Range, anchor host.Anchor) (int, error) {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return 0, err
	}
	o, err := r.peer(with)
	if err != nil {
		return 0, err
	}
	return sign(r.end - anchorOf(o, anchor)), nil
}

func (r *Range) clamp(v int) int {
	if v < 0 {
		return 0
	}
	if n := len(r.ctx.doc.text); v > n {
		return n
	}
	return v
}

// ShiftStart moves the start anchor, dragging the end along if it is crossed.
func (r *Range) ShiftStart(ec host.EditCookie, n int) (int, error) {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return 0, err
	}
	target := r.clamp(r.start + n)
	moved := target - r.start
	r.start = target
	if r.start > r.end {
		r.end = r.start
	}
	return moved, nil
}

// ShiftEnd moves the end anchor, dragging the start along if it is crossed.
func (r *Range) ShiftEnd(ec host.EditCookie, n int) (int, error) {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return 0, err
	}
	target := r.clamp(r.end + n)
	moved := target - r.end
	r.end = target
	if r.end < r.start {
		r.start = r.end
	}
	return moved, nil
}

// Collapse makes the range empty at the chosen anchor.
func (r *Range) Collapse(ec host.EditCookie, anchor host.Anchor) error {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return err
	}
	if anchor == host.AnchorEnd {
		r.start = r.end
	} else {
		r.end = r.start
	}
	return nil
}

// IsEmpty reports whether start equals end.
func (r *Range) IsEmpty(ec host.EditCookie) (bool, error) {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return false, err
	}
	return r.start == r.end, nil
}

// Clone returns an independent range over the same interval.
func (r *Range) Clone() host.Range {
	return r.ctx.newRange(r.start, r.end)
}

// Property stores one value per character.
type Property struct {
	ctx    *Context
	values []any
}

func (p *Property) splice(start, end, n int) {
	values := make([]any, 0, len(p.values)+n-(end-start))
	values = append(values, p.values[:start]...)
	values = append(values, make([]any, n)...)
	values = append(values, p.values[end:]...)
	p.values = values
}

func (p *Property) bounds(r host.Range) (int, int, error) {
	rr, ok := r.(*Range)
	if !ok || rr == nil || rr.ctx.doc != p.ctx.doc {
		return 0, 0, host.ErrIncomparable
	}
	return rr.start, rr.end, nil
}

// SetValue stores v over r.
func (p *Property) SetValue(ec host.EditCookie, r host.Range, v any) error {
	if err := p.ctx.checkLock(ec, true); err != nil {
		return err
	}
	start, end, err := p.bounds(r)
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		p.values[i] = v
	}
	return nil
}

// Value returns the value held over all of r.
func (p *Property) Value(ec host.EditCookie, r host.Range) (any, error) {
	if err := p.ctx.checkLock(ec, false); err != nil {
		return nil, err
	}
	start, end, err := p.bounds(r)
	if err != nil {
		return nil, err
	}
	if start == end || p.values[start] == nil {
		return nil, host.ErrNotFound
	}
	v := p.values[start]
	for i := start + 1; i < end; i++ {
		if p.values[i] != v {
			return nil, host.ErrNotFound
		}
	}
	return v, nil
}

// Clear removes values over r.
func (p *Property) Clear(ec host.EditCookie, r host.Range) error {
	if err := p.ctx.checkLock(ec, true); err != nil {
		return err
	}
	start, end, err := p.bounds(r)
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		p.values[i] = nil
	}
	return nil
}

// At returns the value stored at offset i without a lock.
func (p *Property) At(i int) any {
	if i < 0 || i >= len(p.values) {
		return nil
	}
	return p.values[i]
}
