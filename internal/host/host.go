// Package host defines the boundary between the text service and the
// document-editing platform that drives it.
//
// The platform owns every document, range, composition and subscription.
// The text service only borrows these objects for the duration of a
// callback, except for the range held by an active composition. All calls
// arrive on a single callback thread; nothing here is safe for concurrent use
// and nothing needs to be.
//
// The interfaces are split along the roles the platform exposes:
//
//	ThreadManager      focus, subscriptions, keystrokes, compartments
//	DocumentManager    stack of contexts for one document
//	Context            selection, edit sessions, compositions, properties
//	Range              anchored interval with comparison and shift
//
// and the roles the text service implements back:
//
//	TextInputProcessor Activate / Deactivate
//	ThreadMgrEventSink focus and context stack notifications
//	TextEditSink       end-of-edit notification
//	KeyEventSink       key test / key commit / preserved keys
//	CompositionSink    host-initiated composition termination
package host

import (
	"github.com/google/uuid"
)

// ClientID identifies an activated text service to the platform.
type ClientID uint32

// ClientIDNull is the client id of a text service that is not activated.
const ClientIDNull ClientID = 0

// EditCookie authorizes document access inside a granted edit session.
// It is valid only until the session's work item returns.
type EditCookie uint32

// Cookie is a subscription handle issued by AdviseSink.
type Cookie uint32

// InvalidCookie marks a subscription that is not established.
const InvalidCookie Cookie = 0xFFFFFFFF

// GUIDAtom is the runtime handle the platform assigns to a registered GUID.
type GUIDAtom uint32

// Anchor selects one end of a range.
type Anchor int

const (
	AnchorStart Anchor = iota
	AnchorEnd
)

func (a Anchor) String() string {
	if a == AnchorEnd {
		return "end"
	}
	return "start"
}

// Timing controls when a granted edit session runs.
type Timing int

const (
	// Async sessions run later, after the requesting call has returned.
	Async Timing = iota
	// Sync sessions run before the requesting call returns. Only legal
	// from inside key dispatch.
	Sync
)

func (t Timing) String() string {
	if t == Sync {
		return "sync"
	}
	return "async"
}

// Access is the lock type requested for an edit session.
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// InsertFlags modify InsertTextAtSelection.
type InsertFlags uint32

const (
	// InsertQueryOnly reports where text would go without inserting it.
	InsertQueryOnly InsertFlags = 1 << iota
	// InsertNoDefaultComposition keeps the platform from wrapping the
	// insertion in a composition of its own.
	InsertNoDefaultComposition
)

// SinkKind names the callback interface passed to AdviseSink.
type SinkKind int

const (
	SinkThreadMgrEvent SinkKind = iota
	SinkTextEdit
	SinkLangBarItem
)

func (k SinkKind) String() string {
	switch k {
	case SinkThreadMgrEvent:
		return "thread_mgr_event"
	case SinkTextEdit:
		return "text_edit"
	case SinkLangBarItem:
		return "langbar_item"
	default:
		return "unknown"
	}
}

// Well-known platform GUIDs.
var (
	// GUIDPropAttribute is the property holding display attribute atoms.
	GUIDPropAttribute = uuid.MustParse("34b45670-7526-11d2-a147-00105a2799b5")

	// GUIDCompartmentKeyboardDisabled lives on a context; non-zero disables keyboard input.
	GUIDCompartmentKeyboardDisabled = uuid.MustParse("71a5b253-1951-466b-9fbc-9c8808fa84f2")

	// GUIDCompartmentKeyboardOpenClose lives on the thread manager; non-zero means open.
	GUIDCompartmentKeyboardOpenClose = uuid.MustParse("58273aad-01bb-4164-95c6-755ba0b5162d")

	// GUIDCompartmentEmptyContext lives on a context; non-zero marks a context with no text store.
	GUIDCompartmentEmptyContext = uuid.MustParse("d7487dbf-804e-41c5-894d-ad96fd4eea13")
)

// Grant reports how the platform answered an edit-session request.
type Grant struct {
	// Async is set when the work item was queued rather than run.
	Async bool
	// Err is the work item's own result for a synchronous session.
	Err error
}

// EditSession is a unit of work run under a platform-granted document lock.
type EditSession interface {
	DoEditSession(ec EditCookie) error
}

// EditSessionFunc adapts a function to EditSession.
type EditSessionFunc func(ec EditCookie) error

// DoEditSession calls f(ec).
func (f EditSessionFunc) DoEditSession(ec EditCookie) error { return f(ec) }

// Range is a platform-owned interval over document content.
//
// CompareStart and CompareEnd compare this range's start (or end) anchor
// against the chosen anchor of another range and return a negative, zero or
// positive number. They fail with ErrIncomparable when the ranges belong to
// different content.
type Range interface {
	Text(ec EditCookie) (string, error)
	SetText(ec EditCookie, text string) error
	CompareStart(ec EditCookie, with Range, anchor Anchor) (int, error)
	CompareEnd(ec EditCookie, with Range, anchor Anchor) (int, error)
	// ShiftStart moves the start anchor by n characters and returns how
	// far it actually moved.
	ShiftStart(ec EditCookie, n int) (int, error)
	ShiftEnd(ec EditCookie, n int) (int, error)
	Collapse(ec EditCookie, anchor Anchor) error
	IsEmpty(ec EditCookie) (bool, error)
	Clone() Range
}

// Selection is the platform's current caret or selected range.
type Selection struct {
	Range       Range
	InterimChar bool
}

// Source issues subscription cookies for callback sinks.
type Source interface {
	AdviseSink(kind SinkKind, sink any) (Cookie, error)
	UnadviseSink(cookie Cookie) error
}

// Context is one editable text stream of a document.
type Context interface {
	Source

	RequestEditSession(cid ClientID, session EditSession, timing Timing, access Access) (Grant, error)

	Selection(ec EditCookie) (Selection, error)
	SetSelection(ec EditCookie, sel Selection) error

	// InsertTextAtSelection inserts text at the selection, or with
	// InsertQueryOnly reports the range the insertion would occupy.
	InsertTextAtSelection(ec EditCookie, flags InsertFlags, text string) (Range, error)

	StartComposition(ec EditCookie, r Range, sink CompositionSink) (Composition, error)

	// Property returns the property store for id, or ErrNotFound when the
	// context does not keep one.
	Property(id uuid.UUID) (Property, error)

	CompartmentManager() (CompartmentManager, error)
}

// DocumentManager holds the stack of contexts for one document.
type DocumentManager interface {
	// Top returns the topmost context, or ErrNoContext.
	Top() (Context, error)
}

// ThreadManager is the per-thread entry point of the platform.
type ThreadManager interface {
	Source

	// Focus returns the focused document, or ErrNoFocus.
	Focus() (DocumentManager, error)

	KeystrokeManager() (KeystrokeManager, error)
	CompartmentManager() (CompartmentManager, error)
	LangBarItemManager() (LangBarItemManager, error)
	CategoryManager() (CategoryManager, error)
}

// Composition is an active composition owned by the platform.
type Composition interface {
	Range() (Range, error)
	End(ec EditCookie) error
}

// Property is a typed value store keyed by document ranges.
type Property interface {
	SetValue(ec EditCookie, r Range, v any) error
	// Value returns the value held uniformly over r, or ErrNotFound.
	Value(ec EditCookie, r Range) (any, error)
	Clear(ec EditCookie, r Range) error
}

// EditRecord describes what changed during the edit session that just ended.
type EditRecord interface {
	SelectionChanged() (bool, error)
	TextUpdates(ec EditCookie) ([]Range, error)
}

// Compartment is a shared integer flag.
type Compartment interface {
	// Value returns ErrEmptyValue when nothing was ever stored.
	Value() (int32, error)
	SetValue(cid ClientID, v int32) error
}

// CompartmentManager looks up compartments by GUID.
type CompartmentManager interface {
	Compartment(id uuid.UUID) (Compartment, error)
}

// CategoryManager maps GUIDs to runtime atoms. Registration is expensive.
type CategoryManager interface {
	RegisterGUID(id uuid.UUID) (GUIDAtom, error)
}

// KeystrokeManager routes keys to a text service.
type KeystrokeManager interface {
	AdviseKeyEventSink(cid ClientID, sink KeyEventSink, foreground bool) error
	UnadviseKeyEventSink(cid ClientID) error
	PreserveKey(cid ClientID, id uuid.UUID, key PreservedKey, desc string) error
	UnpreserveKey(id uuid.UUID, key PreservedKey) error
}

// LangBarItemManager holds the UI affordances shown for the thread.
type LangBarItemManager interface {
	AddItem(item LangBarItem) error
	RemoveItem(item LangBarItem) error
}
