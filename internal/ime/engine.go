package ime

import (
	"errors"
	"fmt"
	"sync"

	"textservice/internal/attribute"
	"textservice/internal/host"
	"textservice/internal/host/memhost"
	"textservice/internal/logging"
	"textservice/internal/service"
)

// Client receives the engine's output for the focused input context.
type Client interface {
	CommitText(text string) error
	UpdatePreedit(text string, cursor int, visible bool) error
}

// EngineOptions configure an Engine.
type EngineOptions struct {
	Logger    *logging.Logger
	Styles    attribute.OverrideStore
	ToggleKey host.PreservedKey
}

// EngineStats tracks engine statistics.
type EngineStats struct {
	KeysProcessed uint64
	KeysEaten     uint64
	Commits       uint64
	FocusChanges  uint64
}

// Engine drives a text service session from input method key events. The
// service edits an in-memory document that holds the text typed since the
// last commit; the composition is shown as preedit and the document is
// committed to the client once the composition ends.
type Engine struct {
	mu     sync.Mutex
	logger *logging.Logger
	client Client

	tm  *memhost.ThreadManager
	dm  *memhost.DocumentManager
	ctx *memhost.Context
	svc *service.Service

	enabled bool
	focused bool
	dirty   bool
	preedit string
	cursor  int

	stats EngineStats
}

// NewEngine activates a text service session that reports to client.
func NewEngine(client Client, opts EngineOptions) (*Engine, error) {
	if client == nil {
		return nil, errors.New("ime: nil client")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	e := &Engine{
		logger: logger.WithComponent("ime_engine"),
		client: client,
		tm:     memhost.New(),
	}
	e.dm = e.tm.CreateDocumentManager()
	e.ctx = e.dm.Push("")

	e.svc = service.New(service.Options{
		Logger:    logger.Logger,
		Styles:    opts.Styles,
		ToggleKey: opts.ToggleKey,
		OnTextUpdated: func(host.Context, host.EditCookie, []host.Range) {
			e.dirty = true
		},
	})
	if _, err := e.tm.Activate(e.svc); err != nil {
		return nil, fmt.Errorf("activate text service: %w", err)
	}
	return e, nil
}

// Service returns the session the engine drives.
func (e *Engine) Service() *service.Service {
	return e.svc
}

// ProcessKeyEvent handles an IBus key press or release and reports whether
// the engine consumed it.
func (e *Engine) ProcessKeyEvent(keyval, keycode, state uint32) (eaten bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.logger.Recover("ProcessKeyEvent")

	if !e.enabled || !e.focused {
		return false
	}
	ev, ok := TranslateKey(keyval, state)
	if !ok {
		return false
	}
	e.stats.KeysProcessed++
	e.logger.Debug("key event", "vkey", ev.VKey, "keycode", keycode, "release", ev.Release)

	if e.sendPreserved(ev) {
		if !e.svc.KeyboardOpen() {
			e.commitComposition()
		}
		e.sync()
		e.stats.KeysEaten++
		return true
	}
	if ev.Chorded() {
		return false
	}

	var err error
	if ev.Release {
		eaten, err = e.tm.SendKeyUp(ev.VKey)
	} else {
		eaten, err = e.tm.SendKeyDown(ev.VKey)
	}
	if err != nil {
		e.logger.Warn("key dispatch", "vkey", ev.VKey, "error", err)
	}
	e.sync()
	if eaten {
		e.stats.KeysEaten++
	}
	return eaten
}

func (e *Engine) sendPreserved(ev KeyEvent) bool {
	keys := []host.PreservedKey{ev.Preserved()}
	if !ev.Release {
		keys = append(keys, host.PreservedKey{VKey: ev.VKey, Modifiers: host.ModIgnoreAllModifier})
	}
	for _, key := range keys {
		eaten, err := e.tm.SendPreservedKey(key)
		if err != nil {
			e.logger.Warn("hot key dispatch", "vkey", ev.VKey, "error", err)
		}
		if eaten {
			return true
		}
	}
	return false
}

// sync pushes the document state to the client: the composition becomes
// preedit, and text left once it ends is committed.
func (e *Engine) sync() {
	if start, end, ok := e.ctx.CompositionOffsets(); ok {
		text := []rune(e.ctx.Text())
		preedit := string(text[start:end])
		_, caret := e.ctx.SelectionOffsets()
		cursor := max(0, min(caret-start, end-start))
		if e.dirty || preedit != e.preedit || cursor != e.cursor {
			if err := e.client.UpdatePreedit(preedit, cursor, true); err != nil {
				e.logger.Warn("update preedit", "error", err)
			}
			e.preedit, e.cursor = preedit, cursor
		}
		e.dirty = false
		return
	}

	if text := e.ctx.Text(); text != "" {
		if err := e.client.CommitText(text); err != nil {
			e.logger.Warn("commit text", "error", err)
		}
		e.stats.Commits++
		e.logger.Debug("committed", "commit", text)
		e.clearDocument()
	}
	e.hidePreedit()
	e.dirty = false
}

func (e *Engine) hidePreedit() {
	if e.preedit == "" && e.cursor == 0 {
		return
	}
	if err := e.client.UpdatePreedit("", 0, false); err != nil {
		e.logger.Warn("hide preedit", "error", err)
	}
	e.preedit, e.cursor = "", 0
}

func (e *Engine) clearDocument() {
	n := len([]rune(e.ctx.Text()))
	if n == 0 {
		return
	}
	err := e.ctx.HostEdit(func(ec host.EditCookie) error {
		return e.ctx.NewRange(0, n).SetText(ec, "")
	})
	if err != nil {
		e.logger.Warn("clear document", "error", err)
	}
}

// commitComposition ends the composition from the host side so sync
// commits its text.
func (e *Engine) commitComposition() {
	if !e.svc.Composing() {
		return
	}
	if err := e.ctx.TerminateComposition(); err != nil && !errors.Is(err, host.ErrNoComposition) {
		e.logger.Warn("terminate composition", "error", err)
	}
	e.sync()
}

// FocusIn is called when an input context gains focus.
func (e *Engine) FocusIn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.logger.Recover("FocusIn")

	e.focused = true
	e.stats.FocusChanges++
	e.tm.SetFocus(e.dm)
}

// FocusOut commits any composition and drops focus.
func (e *Engine) FocusOut() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.logger.Recover("FocusOut")

	e.commitComposition()
	e.focused = false
	e.stats.FocusChanges++
	e.tm.SetFocus(nil)
}

// Enable opens the keyboard.
func (e *Engine) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.logger.Recover("Enable")

	e.enabled = true
	if err := e.svc.SetKeyboardOpen(true); err != nil {
		e.logger.Warn("open keyboard", "error", err)
	}
}

// Disable commits any composition and closes the keyboard.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.logger.Recover("Disable")

	e.commitComposition()
	if err := e.svc.SetKeyboardOpen(false); err != nil {
		e.logger.Warn("close keyboard", "error", err)
	}
	e.enabled = false
}

// Reset discards the composition without committing it.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.logger.Recover("Reset")

	if e.svc.Composing() {
		if err := e.ctx.TerminateComposition(); err != nil && !errors.Is(err, host.ErrNoComposition) {
			e.logger.Warn("terminate composition", "error", err)
		}
	}
	e.clearDocument()
	e.hidePreedit()
	e.dirty = false
}

// Close ends the text service session.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.svc.Deactivate()
}

// Stats returns engine statistics.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
