// Package memhost is an in-memory implementation of the host platform. It
// drives a text service the way a real platform would: it issues cookies,
// arbitrates edit sessions, moves range anchors as text changes and reports
// every end of edit to the subscribed sinks.
package memhost

import (
	"fmt"

	"textservice/internal/host"
)

// Failures injects errors into platform calls.
type Failures struct {
	AdviseThreadMgrEvent bool
	AdviseTextEditSink   bool
	AdviseKeyEventSink   bool
	PreserveKey          bool
	AddLangBarItem       bool
	StartComposition     bool
	CategoryManager      bool
	NoPropertyStore      bool
}

// ThreadManager is the in-memory platform entry point.
type ThreadManager struct {
	// Fail selects platform calls that should fail.
	Fail Failures
	// DenyEditSessions makes every edit-session request fail.
	DenyEditSessions bool

	nextCookie uint32
	nextEC     uint32
	nextCID    uint32

	outstanding  map[host.Cookie]host.SinkKind
	eventSinks   map[host.Cookie]host.ThreadMgrEventSink
	focus        *DocumentManager
	compartments *CompartmentManager
	keystrokes   *KeystrokeManager
	langbar      *LangBarItemManager
	category     *CategoryManager
}

// New returns a thread manager with no documents.
func New() *ThreadManager {
	tm := &ThreadManager{
		outstanding:  make(map[host.Cookie]host.SinkKind),
		eventSinks:   make(map[host.Cookie]host.ThreadMgrEventSink),
		compartments: newCompartmentManager(),
		category:     newCategoryManager(),
	}
	tm.keystrokes = newKeystrokeManager(tm)
	tm.langbar = newLangBarItemManager(tm)
	return tm
}

func (tm *ThreadManager) issueCookie(kind host.SinkKind) host.Cookie {
	tm.nextCookie++
	c := host.Cookie(tm.nextCookie)
	tm.outstanding[c] = kind
	return c
}

func (tm *ThreadManager) releaseCookie(c host.Cookie) {
	delete(tm.outstanding, c)
}

func (tm *ThreadManager) nextEditCookie() host.EditCookie {
	tm.nextEC++
	return host.EditCookie(tm.nextEC)
}

// OutstandingCookies returns the number of live subscriptions of every kind.
func (tm *ThreadManager) OutstandingCookies() int {
	return len(tm.outstanding)
}

// Activate assigns a client id and activates tip.
func (tm *ThreadManager) Activate(tip host.TextInputProcessor) (host.ClientID, error) {
	tm.nextCID++
	cid := host.ClientID(tm.nextCID)
	return cid, tip.Activate(tm, cid)
}

// AdviseSink accepts a thread manager event sink.
func (tm *ThreadManager) AdviseSink(kind host.SinkKind, sink any) (host.Cookie, error) {
	s, ok := sink.(host.ThreadMgrEventSink)
	if kind != host.SinkThreadMgrEvent || !ok {
		return host.InvalidCookie, host.ErrCannotConnect
	}
	if tm.Fail.AdviseThreadMgrEvent {
		return host.InvalidCookie, fmt.Errorf("%w: injected failure", host.ErrCannotConnect)
	}
	c := tm.issueCookie(kind)
	tm.eventSinks[c] = s
	return c, nil
}

// UnadviseSink releases a thread manager event sink.
func (tm *ThreadManager) UnadviseSink(c host.Cookie) error {
	if _, ok := tm.eventSinks[c]; !ok {
		return host.ErrNoConnection
	}
	delete(tm.eventSinks, c)
	tm.releaseCookie(c)
	return nil
}

func (tm *ThreadManager) each(fn func(s host.ThreadMgrEventSink)) {
	for c := host.Cookie(1); c <= host.Cookie(tm.nextCookie); c++ {
		if s, ok := tm.eventSinks[c]; ok {
			fn(s)
		}
	}
}

// Focus returns the focused document manager.
func (tm *ThreadManager) Focus() (host.DocumentManager, error) {
	if tm.focus == nil {
		return nil, host.ErrNoFocus
	}
	return tm.focus, nil
}

// KeystrokeManager returns the key router.
func (tm *ThreadManager) KeystrokeManager() (host.KeystrokeManager, error) {
	return tm.keystrokes, nil
}

// CompartmentManager returns the thread-wide compartments.
func (tm *ThreadManager) CompartmentManager() (host.CompartmentManager, error) {
	return tm.compartments, nil
}

// Compartments gives tests direct access to the thread-wide compartments.
func (tm *ThreadManager) Compartments() *CompartmentManager {
	return tm.compartments
}

// LangBarItemManager returns the language bar.
func (tm *ThreadManager) LangBarItemManager() (host.LangBarItemManager, error) {
	return tm.langbar, nil
}

// LangBar gives tests direct access to the language bar.
func (tm *ThreadManager) LangBar() *LangBarItemManager {
	return tm.langbar
}

// CategoryManager returns the GUID atom table.
func (tm *ThreadManager) CategoryManager() (host.CategoryManager, error) {
	if tm.Fail.CategoryManager {
		return nil, fmt.Errorf("category manager: %w", host.ErrNotImpl)
	}
	return tm.category, nil
}

// Categories gives tests direct access to the atom table.
func (tm *ThreadManager) Categories() *CategoryManager {
	return tm.category
}

// CreateDocumentManager creates an empty document manager.
func (tm *ThreadManager) CreateDocumentManager() *DocumentManager {
	dm := &DocumentManager{tm: tm}
	tm.each(func(s host.ThreadMgrEventSink) { _ = s.OnInitDocumentMgr(dm) })
	return dm
}

// SetFocus moves focus to dm, which may be nil.
func (tm *ThreadManager) SetFocus(dm *DocumentManager) {
	prev := tm.focus
	tm.focus = dm
	tm.each(func(s host.ThreadMgrEventSink) {
		_ = s.OnSetFocus(docMgr(dm), docMgr(prev))
	})
}

// docMgr keeps a nil *DocumentManager from becoming a non-nil interface.
func docMgr(dm *DocumentManager) host.DocumentManager {
	if dm == nil {
		return nil
	}
	return dm
}

// FocusedContext returns the top context of the focused document.
func (tm *ThreadManager) FocusedContext() *Context {
	if tm.focus == nil {
		return nil
	}
	return tm.focus.top()
}

// SendKeyDown delivers a key press: the test callback first, then the
// consuming callback if the key is eaten. Queued sessions run afterwards.
func (tm *ThreadManager) SendKeyDown(vk host.VirtualKey) (bool, error) {
	return tm.sendKey(vk, false)
}

// SendKeyUp delivers a key release.
func (tm *ThreadManager) SendKeyUp(vk host.VirtualKey) (bool, error) {
	return tm.sendKey(vk, true)
}

func (tm *ThreadManager) sendKey(vk host.VirtualKey, up bool) (bool, error) {
	sink := tm.keystrokes.foreground()
	if sink == nil {
		return false, nil
	}
	ctx := tm.FocusedContext()
	hctx := hostContext(ctx)

	test, key := sink.OnTestKeyDown, sink.OnKeyDown
	if up {
		test, key = sink.OnTestKeyUp, sink.OnKeyUp
	}
	eaten, err := test(hctx, vk, 0)
	if err != nil || !eaten {
		return eaten, err
	}
	eaten, err = key(hctx, vk, 0)
	if ctx != nil {
		ctx.Pump()
	}
	return eaten, err
}

// SendPreservedKey delivers a hot key if some service preserved it.
func (tm *ThreadManager) SendPreservedKey(key host.PreservedKey) (bool, error) {
	reg, ok := tm.keystrokes.lookup(key)
	if !ok {
		return false, nil
	}
	sink := tm.keystrokes.sinks[reg.cid]
	if sink == nil {
		return false, nil
	}
	ctx := tm.FocusedContext()
	eaten, err := sink.OnPreservedKey(hostContext(ctx), reg.id)
	if ctx != nil {
		ctx.Pump()
	}
	return eaten, err
}

func hostContext(c *Context) host.Context {
	if c == nil {
		return nil
	}
	return c
}

// Pump runs queued sessions on the focused context.
func (tm *ThreadManager) Pump() {
	if ctx := tm.FocusedContext(); ctx != nil {
		ctx.Pump()
	}
}

// DocumentManager is a stack of contexts.
type DocumentManager struct {
	tm    *ThreadManager
	stack []*Context
}

func (dm *DocumentManager) top() *Context {
	if len(dm.stack) == 0 {
		return nil
	}
	return dm.stack[len(dm.stack)-1]
}

// Top returns the topmost context.
func (dm *DocumentManager) Top() (host.Context, error) {
	if c := dm.top(); c != nil {
		return c, nil
	}
	return nil, host.ErrNoContext
}

// Push creates a context over text and makes it the top.
func (dm *DocumentManager) Push(text string) *Context {
	c := newContext(dm.tm, text)
	dm.stack = append(dm.stack, c)
	dm.tm.each(func(s host.ThreadMgrEventSink) { _ = s.OnPushContext(c) })
	return c
}

// Pop removes the top context.
func (dm *DocumentManager) Pop() {
	c := dm.top()
	if c == nil {
		return
	}
	dm.stack = dm.stack[:len(dm.stack)-1]
	dm.tm.each(func(s host.ThreadMgrEventSink) { _ = s.OnPopContext(c) })
}
