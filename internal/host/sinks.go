package host

import "github.com/google/uuid"

// TextInputProcessor is the activation surface of a text service.
type TextInputProcessor interface {
	Activate(tm ThreadManager, cid ClientID) error
	Deactivate() error
}

// ThreadMgrEventSink receives focus and context stack notifications.
// Arguments may be nil.
type ThreadMgrEventSink interface {
	OnInitDocumentMgr(dm DocumentManager) error
	OnUninitDocumentMgr(dm DocumentManager) error
	OnSetFocus(focus, prev DocumentManager) error
	OnPushContext(ctx Context) error
	OnPopContext(ctx Context) error
}

// TextEditSink is told about every edit session that ends on a context,
// whoever requested it. ec grants read-only access.
type TextEditSink interface {
	OnEndEdit(ctx Context, ec EditCookie, rec EditRecord) error
}

// KeyEventSink receives keystrokes. The Test variants ask whether the key
// would be eaten; the others consume it. OnKeyboardFocus reports whether the
// sink is the foreground keystroke consumer.
type KeyEventSink interface {
	OnKeyboardFocus(foreground bool) error
	OnTestKeyDown(ctx Context, vk VirtualKey, flags uint32) (bool, error)
	OnTestKeyUp(ctx Context, vk VirtualKey, flags uint32) (bool, error)
	OnKeyDown(ctx Context, vk VirtualKey, flags uint32) (bool, error)
	OnKeyUp(ctx Context, vk VirtualKey, flags uint32) (bool, error)
	OnPreservedKey(ctx Context, id uuid.UUID) (bool, error)
}

// CompositionSink is told when the platform ends a composition on its own.
type CompositionSink interface {
	OnCompositionTerminated(ec EditCookie, c Composition) error
}

// LangBarItemSink is the platform's listener on a language bar item.
type LangBarItemSink interface {
	OnUpdate(flags uint32) error
}
