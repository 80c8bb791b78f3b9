// Package service is the text service itself: one Service per activation,
// answering to every callback role the platform drives.
//
// All callbacks arrive on the platform's callback thread. The Service keeps
// plain fields and no locks; front ends that receive events on several
// goroutines serialize them before calling in.
package service

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"textservice/internal/attribute"
	"textservice/internal/composition"
	"textservice/internal/editsession"
	"textservice/internal/host"
	"textservice/internal/ranges"
)

// CLSID identifies the text service to the platform.
var CLSID = uuid.MustParse("e7ea138e-69f8-11d7-a6ea-00065b84435c")

// Description is the display name of the text service.
const Description = "Sample Text Service"

// TextUpdateFunc receives the ranges modified by an edit session. ec is
// read-only and valid only for the call.
type TextUpdateFunc func(ctx host.Context, ec host.EditCookie, updates []host.Range)

// Options configure a Service.
type Options struct {
	Logger *slog.Logger
	// Styles holds user style overrides. Nil means defaults only.
	Styles attribute.OverrideStore
	// ToggleKey replaces the Alt+` binding of the open/close hot key.
	ToggleKey host.PreservedKey
	// OnTextUpdated is called from end-of-edit notifications that carry
	// text changes.
	OnTextUpdated TextUpdateFunc
}

// Service is the text service session.
type Service struct {
	logger        *slog.Logger
	base          *slog.Logger
	onTextUpdated TextUpdateFunc
	toggleKey     host.PreservedKey

	threadMgr host.ThreadManager
	clientID  host.ClientID

	threadMgrEventCookie host.Cookie
	textEditContext      host.Context
	textEditCookie       host.Cookie
	keySinkClient        host.ClientID
	preserved            []preservedKey
	langBarItem          *LangBarButton

	scheduler   *editsession.Scheduler
	composition *composition.Controller
	attributes  *attribute.Assigner
	provider    *attribute.Provider

	terminatePending bool
	// generation changes on every Activate and Deactivate so queued work
	// from an earlier activation can tell it is stale.
	generation uint64
}

var (
	_ host.TextInputProcessor = (*Service)(nil)
	_ host.ThreadMgrEventSink = (*Service)(nil)
	_ host.TextEditSink       = (*Service)(nil)
	_ host.KeyEventSink       = (*Service)(nil)
	_ host.CompositionSink    = (*Service)(nil)
)

// New returns an inactive Service.
func New(opts Options) *Service {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}

	toggle := opts.ToggleKey
	if toggle.VKey == 0 {
		toggle = keyOnOffAltTilde
	}

	return &Service{
		logger:               base.With("component", "text_service"),
		base:                 base,
		onTextUpdated:        opts.OnTextUpdated,
		toggleKey:            toggle,
		threadMgrEventCookie: host.InvalidCookie,
		textEditCookie:       host.InvalidCookie,
		keySinkClient:        host.ClientIDNull,
		composition:          composition.New(base),
		attributes:           attribute.NewAssigner(base),
		provider:             attribute.NewProvider(opts.Styles, base),
	}
}

// Provider returns the display attribute provider.
func (s *Service) Provider() *attribute.Provider {
	return s.provider
}

// Composing reports whether a composition is active.
func (s *Service) Composing() bool {
	return s.composition.Active()
}

// CompositionText returns the text of the active composition. ec must be
// valid for the composition's context.
func (s *Service) CompositionText(ec host.EditCookie) (string, error) {
	return s.composition.Text(ec)
}

// ClientID returns the client id of the current activation.
func (s *Service) ClientID() host.ClientID {
	return s.clientID
}

// Activate binds the Service to tm. A failure to subscribe for thread
// events or keys undoes everything and is returned; the other steps are
// best effort.
func (s *Service) Activate(tm host.ThreadManager, cid host.ClientID) error {
	s.logger.Debug("Activate", "client_id", cid)
	if tm == nil {
		return fmt.Errorf("activate: %w", host.ErrNotImpl)
	}

	s.threadMgr = tm
	s.clientID = cid
	s.generation++
	s.scheduler = editsession.New(cid, s.base)

	cookie, err := tm.AdviseSink(host.SinkThreadMgrEvent, s)
	if err != nil {
		s.logger.Error("advise thread manager event sink", "error", err)
		_ = s.Deactivate()
		return fmt.Errorf("activate: advise thread manager event sink: %w", err)
	}
	s.threadMgrEventCookie = cookie

	if dm, err := tm.Focus(); err == nil && dm != nil {
		s.initTextEditSink(dm)
	}

	s.initLangBar()

	if err := s.initKeyEventSink(); err != nil {
		s.logger.Error("advise key event sink", "error", err)
		_ = s.Deactivate()
		return fmt.Errorf("activate: advise key event sink: %w", err)
	}

	s.initPreservedKeys()
	s.registerAttributes()
	return nil
}

// Deactivate releases everything Activate acquired. It may be called any
// number of times, including after a failed activation.
func (s *Service) Deactivate() error {
	s.logger.Debug("Deactivate")
	if s.threadMgr == nil {
		return nil
	}

	s.uninitTextEditSink()

	if s.threadMgrEventCookie != host.InvalidCookie {
		if err := s.threadMgr.UnadviseSink(s.threadMgrEventCookie); err != nil {
			s.logger.Warn("unadvise thread manager event sink", "error", err)
		}
		s.threadMgrEventCookie = host.InvalidCookie
	}

	s.uninitLangBar()
	s.uninitKeyEventSink()
	s.uninitPreservedKeys()

	s.composition.Reset()
	s.attributes.Reset()
	s.terminatePending = false
	s.generation++

	s.threadMgr = nil
	s.clientID = host.ClientIDNull
	s.scheduler = nil
	return nil
}

func (s *Service) registerAttributes() {
	cm, err := s.threadMgr.CategoryManager()
	if err == nil {
		err = s.attributes.Register(cm)
	}
	if err != nil {
		s.logger.Warn("register display attributes", "error", err)
	}
}

func (s *Service) initTextEditSink(dm host.DocumentManager) {
	s.uninitTextEditSink()

	ctx, err := dm.Top()
	if err != nil || ctx == nil {
		return
	}
	cookie, err := ctx.AdviseSink(host.SinkTextEdit, s)
	if err != nil {
		s.logger.Warn("advise text edit sink", "error", err)
		return
	}
	s.textEditContext = ctx
	s.textEditCookie = cookie
}

func (s *Service) uninitTextEditSink() {
	if s.textEditCookie == host.InvalidCookie {
		return
	}
	if err := s.textEditContext.UnadviseSink(s.textEditCookie); err != nil {
		s.logger.Warn("unadvise text edit sink", "error", err)
	}
	s.textEditContext = nil
	s.textEditCookie = host.InvalidCookie
}

// OnInitDocumentMgr is a no-op.
func (s *Service) OnInitDocumentMgr(dm host.DocumentManager) error {
	s.logger.Debug("OnInitDocumentMgr")
	return nil
}

// OnUninitDocumentMgr is a no-op.
func (s *Service) OnUninitDocumentMgr(dm host.DocumentManager) error {
	s.logger.Debug("OnUninitDocumentMgr")
	return nil
}

// OnSetFocus moves the text edit sink to the newly focused document.
func (s *Service) OnSetFocus(focus, prev host.DocumentManager) error {
	s.logger.Debug("OnSetFocus", "focused", focus != nil)
	if focus != nil {
		s.initTextEditSink(focus)
	} else {
		s.uninitTextEditSink()
	}
	return nil
}

// OnPushContext is a no-op.
func (s *Service) OnPushContext(ctx host.Context) error {
	s.logger.Debug("OnPushContext")
	return nil
}

// OnPopContext is a no-op.
func (s *Service) OnPopContext(ctx host.Context) error {
	s.logger.Debug("OnPopContext")
	return nil
}

// OnEndEdit ends the composition when the selection has left it. The
// termination runs in a new asynchronous session; at most one is queued.
func (s *Service) OnEndEdit(ctx host.Context, ec host.EditCookie, rec host.EditRecord) error {
	s.logger.Debug("OnEndEdit")
	if rec == nil {
		return nil
	}

	if changed, err := rec.SelectionChanged(); err == nil && changed && s.composition.Active() {
		if !s.selectionInComposition(ec, ctx) {
			s.requestTerminate(ctx)
		}
	}

	updates, err := rec.TextUpdates(ec)
	if err == nil && len(updates) > 0 {
		s.logger.Debug("OnEndEdit: text updated", "ranges", len(updates))
		if s.onTextUpdated != nil {
			s.onTextUpdated(ctx, ec, updates)
		}
	}
	return nil
}

func (s *Service) selectionInComposition(ec host.EditCookie, ctx host.Context) bool {
	sel, err := ctx.Selection(ec)
	if err != nil {
		return true
	}
	comp, err := s.composition.Range()
	if err != nil {
		return true
	}
	return ranges.Covered(ec, sel.Range, comp)
}

func (s *Service) requestTerminate(ctx host.Context) {
	if s.terminatePending || s.scheduler == nil {
		return
	}
	gen, target := s.generation, s.composition.Current()
	s.terminatePending = true
	out, err := s.scheduler.Request(ctx, func(ec host.EditCookie) error {
		// The composition may have ended or been replaced while queued, and
		// the selection may have moved back inside it.
		if gen != s.generation || target == nil || s.composition.Current() != target {
			return nil
		}
		s.terminatePending = false
		if s.selectionInComposition(ec, ctx) {
			return nil
		}
		return s.terminateComposition(ec, ctx)
	}, host.Async, host.ReadWrite)
	if err != nil {
		s.logger.Warn("schedule composition termination", "error", err)
	}
	if out != editsession.Granted {
		s.terminatePending = false
	}
}

func (s *Service) terminateComposition(ec host.EditCookie, ctx host.Context) error {
	if !s.composition.Active() {
		return nil
	}
	s.terminatePending = false
	if r, err := s.composition.Range(); err == nil {
		if err := s.attributes.Clear(ec, ctx, r); err != nil {
			s.logger.Warn("clear display attribute", "error", err)
		}
	}
	return s.composition.Terminate(ec)
}

// OnCompositionTerminated forgets a composition the platform ended.
func (s *Service) OnCompositionTerminated(ec host.EditCookie, comp host.Composition) error {
	s.logger.Debug("OnCompositionTerminated")
	s.terminatePending = false
	return s.composition.OnCompositionTerminated(ec, comp)
}
