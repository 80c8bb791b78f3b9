package memhost

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"textservice/internal/host"
)

// maxDrain bounds how many queued sessions one drain runs, so a work item
// that keeps requesting itself cannot hang a test.
const maxDrain = 1024

// SessionRecord is the history entry for one edit session.
type SessionRecord struct {
	Requester string // "client" or "host"
	Timing    host.Timing
	Access    host.Access
	Err       error
}

type lockState struct {
	held   bool
	ec     host.EditCookie
	access host.Access
}

type queued struct {
	session host.EditSession
	access  host.Access
}

// Context is an in-memory document context.
type Context struct {
	tm           *ThreadManager
	doc          *document
	sel          *Range
	compartments *CompartmentManager
	composition  *Composition
	sinks        map[host.Cookie]host.TextEditSink

	lock  lockState
	queue []queued

	selChanged bool
	updates    [][2]int
	history    []SessionRecord
}

func newContext(tm *ThreadManager, text string) *Context {
	c := &Context{
		tm:           tm,
		doc:          newDocument(text),
		compartments: newCompartmentManager(),
		sinks:        make(map[host.Cookie]host.TextEditSink),
	}
	n := len(c.doc.text)
	c.sel = c.newRange(n, n)
	return c
}

func (c *Context) checkLock(ec host.EditCookie, write bool) error {
	if !c.lock.held || ec != c.lock.ec {
		return host.ErrNoLock
	}
	if write && c.lock.access != host.ReadWrite {
		return fmt.Errorf("%w: read-only session", host.ErrNoLock)
	}
	return nil
}

func (c *Context) replace(start, end int, s []rune) {
	c.doc.replace(start, end, s)
	c.updates = append(c.updates, [2]int{start, start + len(s)})
}

// AdviseSink accepts a text-edit sink.
func (c *Context) AdviseSink(kind host.SinkKind, sink any) (host.Cookie, error) {
	s, ok := sink.(host.TextEditSink)
	if kind != host.SinkTextEdit || !ok {
		return host.InvalidCookie, host.ErrCannotConnect
	}
	if c.tm.Fail.AdviseTextEditSink {
		return host.InvalidCookie, fmt.Errorf("%w: injected failure", host.ErrCannotConnect)
	}
	cookie := c.tm.issueCookie(kind)
	c.sinks[cookie] = s
	return cookie, nil
}

// UnadviseSink releases a text-edit sink.
func (c *Context) UnadviseSink(cookie host.Cookie) error {
	if _, ok := c.sinks[cookie]; !ok {
		return host.ErrNoConnection
	}
	delete(c.sinks, cookie)
	c.tm.releaseCookie(cookie)
	return nil
}

// RequestEditSession grants sync sessions when the document is unlocked and
// queues async ones until Pump is called.
func (c *Context) RequestEditSession(cid host.ClientID, s host.EditSession, timing host.Timing, access host.Access) (host.Grant, error) {
	if c.tm.DenyEditSessions || cid == host.ClientIDNull {
		return host.Grant{}, host.ErrDenied
	}
	if timing == host.Sync {
		if c.lock.held {
			return host.Grant{}, fmt.Errorf("%w: document already locked", host.ErrDenied)
		}
		return host.Grant{Err: c.run("client", s, host.Sync, access)}, nil
	}
	c.queue = append(c.queue, queued{session: s, access: access})
	return host.Grant{Async: true}, nil
}

func (c *Context) run(requester string, s host.EditSession, timing host.Timing, access host.Access) error {
	c.lock = lockState{held: true, ec: c.tm.nextEditCookie(), access: access}
	c.selChanged = false
	c.updates = nil

	err := s.DoEditSession(c.lock.ec)
	c.history = append(c.history, SessionRecord{
		Requester: requester,
		Timing:    timing,
		Access:    access,
		Err:       err,
	})

	if access == host.ReadWrite {
		c.notifyEndEdit()
	}
	c.lock = lockState{}
	return err
}

func (c *Context) notifyEndEdit() {
	rec := &editRecord{ctx: c, selChanged: c.selChanged}
	for _, u := range c.updates {
		rec.updates = append(rec.updates, [2]int{u[0], u[1]})
	}

	c.lock.access = host.ReadOnly
	c.lock.ec = c.tm.nextEditCookie()

	cookies := make([]host.Cookie, 0, len(c.sinks))
	for cookie := range c.sinks {
		cookies = append(cookies, cookie)
	}
	sort.Slice(cookies, func(i, j int) bool { return cookies[i] < cookies[j] })
	for _, cookie := range cookies {
		if s, ok := c.sinks[cookie]; ok {
			_ = s.OnEndEdit(c, c.lock.ec, rec)
		}
	}
}

func (c *Context) drain() {
	for i := 0; i < maxDrain && len(c.queue) > 0; i++ {
		q := c.queue[0]
		c.queue = c.queue[1:]
		c.run("client", q.session, host.Async, q.access)
	}
}

// Pump runs queued async sessions.
func (c *Context) Pump() {
	if c.lock.held {
		return
	}
	c.drain()
}

// Pending returns the number of queued async sessions.
func (c *Context) Pending() int {
	return len(c.queue)
}

// History returns every edit session run on this context.
func (c *Context) History() []SessionRecord {
	out := make([]SessionRecord, len(c.history))
	copy(out, c.history)
	return out
}

// Selection returns a copy of the current selection.
func (c *Context) Selection(ec host.EditCookie) (host.Selection, error) {
	if err := c.checkLock(ec, false); err != nil {
		return host.Selection{}, err
	}
	return host.Selection{Range: c.sel.Clone()}, nil
}

// SetSelection moves the selection to sel's range.
func (c *Context) SetSelection(ec host.EditCookie, sel host.Selection) error {
	if err := c.checkLock(ec, true); err != nil {
		return err
	}
	r, err := c.sel.peer(sel.Range)
	if err != nil {
		return err
	}
	c.sel.start, c.sel.end = r.start, r.end
	c.selChanged = true
	return nil
}

// InsertTextAtSelection replaces the selection with text, or with
// InsertQueryOnly returns the range the insertion would occupy.
func (c *Context) InsertTextAtSelection(ec host.EditCookie, flags host.InsertFlags, text string) (host.Range, error) {
	if err := c.checkLock(ec, true); err != nil {
		return nil, err
	}
	if flags&host.InsertQueryOnly != 0 {
		return c.newRange(c.sel.start, c.sel.end), nil
	}
	runes := []rune(text)
	start := c.sel.start
	c.replace(c.sel.start, c.sel.end, runes)
	c.sel.start, c.sel.end = start+len(runes), start+len(runes)
	c.selChanged = true
	return c.newRange(start, start+len(runes)), nil
}

// StartComposition begins a composition over r. A composition owned by a
// different sink is terminated first.
func (c *Context) StartComposition(ec host.EditCookie, r host.Range, sink host.CompositionSink) (host.Composition, error) {
	if err := c.checkLock(ec, true); err != nil {
		return nil, err
	}
	if c.tm.Fail.StartComposition {
		return nil, fmt.Errorf("start composition: injected failure")
	}
	rr, err := c.sel.peer(r)
	if err != nil {
		return nil, err
	}
	if prev := c.composition; prev != nil {
		c.composition = nil
		prev.ended = true
		if prev.sink != sink && prev.sink != nil {
			_ = prev.sink.OnCompositionTerminated(ec, prev)
		}
	}
	comp := &Composition{ctx: c, rng: c.newRange(rr.start, rr.end), sink: sink}
	c.composition = comp
	return comp, nil
}

// Property returns the property store for id.
func (c *Context) Property(id uuid.UUID) (host.Property, error) {
	if id == host.GUIDPropAttribute && c.tm.Fail.NoPropertyStore {
		return nil, host.ErrNotFound
	}
	return c.property(id), nil
}

func (c *Context) property(id uuid.UUID) *Property {
	p, ok := c.doc.props[id]
	if !ok {
		p = &Property{ctx: c, values: make([]any, len(c.doc.text))}
		c.doc.props[id] = p
	}
	return p
}

// CompartmentManager returns the context's compartments.
func (c *Context) CompartmentManager() (host.CompartmentManager, error) {
	return c.compartments, nil
}

// Compartments gives tests direct access to the context's compartments.
func (c *Context) Compartments() *CompartmentManager {
	return c.compartments
}

// HostEdit runs fn in a read-write session on behalf of the application,
// followed by the usual end-of-edit notification. Sessions queued by the
// notified sinks stay queued until Pump.
func (c *Context) HostEdit(fn func(ec host.EditCookie) error) error {
	if c.lock.held {
		return fmt.Errorf("%w: document already locked", host.ErrDenied)
	}
	return c.run("host", host.EditSessionFunc(fn), host.Sync, host.ReadWrite)
}

// MoveSelection moves the caret or selection as the application would.
func (c *Context) MoveSelection(start, end int) error {
	return c.HostEdit(func(ec host.EditCookie) error {
		r := c.newRange(c.sel.clamp(start), c.sel.clamp(end))
		return c.SetSelection(ec, host.Selection{Range: r})
	})
}

// TerminateComposition ends the active composition from the platform side
// and tells its sink.
func (c *Context) TerminateComposition() error {
	if c.composition == nil {
		return host.ErrNoComposition
	}
	return c.HostEdit(func(ec host.EditCookie) error {
		comp := c.composition
		if comp == nil {
			return nil
		}
		c.composition = nil
		comp.ended = true
		if comp.sink != nil {
			return comp.sink.OnCompositionTerminated(ec, comp)
		}
		return nil
	})
}

// Text returns the whole document text.
func (c *Context) Text() string {
	return string(c.doc.text)
}

// SelectionOffsets returns the selection anchors.
func (c *Context) SelectionOffsets() (int, int) {
	return c.sel.start, c.sel.end
}

// CompositionOffsets returns the active composition's anchors.
func (c *Context) CompositionOffsets() (start, end int, ok bool) {
	if c.composition == nil {
		return 0, 0, false
	}
	return c.composition.rng.start, c.composition.rng.end, true
}

// AttributeAt returns the display attribute value stored at offset i.
func (c *Context) AttributeAt(i int) any {
	return c.property(host.GUIDPropAttribute).At(i)
}

// Composition is an in-memory composition.
type Composition struct {
	ctx   *Context
	rng   *Range
	sink  host.CompositionSink
	ended bool
}

// Range returns a copy of the composition's range.
func (m *Composition) Range() (host.Range, error) {
	if m.ended {
		return nil, host.ErrNoComposition
	}
	return m.rng.Clone(), nil
}

// End finishes the composition. The sink is not notified.
func (m *Composition) End(ec host.EditCookie) error {
	if err := m.ctx.checkLock(ec, true); err != nil {
		return err
	}
	if m.ended {
		return host.ErrNoComposition
	}
	m.ended = true
	if m.ctx.composition == m {
		m.ctx.composition = nil
	}
	return nil
}

type editRecord struct {
	ctx        *Context
	selChanged bool
	updates    [][2]int
}

func (r *editRecord) SelectionChanged() (bool, error) {
	return r.selChanged, nil
}

func (r *editRecord) TextUpdates(ec host.EditCookie) ([]host.Range, error) {
	if err := r.ctx.checkLock(ec, false); err != nil {
		return nil, err
	}
	out := make([]host.Range, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, r.ctx.newRange(u[0], u[1]))
	}
	return out, nil
}
