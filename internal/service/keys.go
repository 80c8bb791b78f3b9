package service

import (
	"fmt"

	"github.com/google/uuid"

	"textservice/internal/attribute"
	"textservice/internal/editsession"
	"textservice/internal/host"
	"textservice/internal/ranges"
)

// Preserved key identities.
var (
	GUIDPreservedKeyOnOff = uuid.MustParse("6a0bde41-6adf-11d7-a6ea-00065b84435c")
	GUIDPreservedKeyF6    = uuid.MustParse("6a0bde42-6adf-11d7-a6ea-00065b84435c")
)

var (
	keyOnOffAltTilde = host.PreservedKey{VKey: host.VKOEM3, Modifiers: host.ModAlt}
	keyOnOffKanji    = host.PreservedKey{VKey: host.VKKanji, Modifiers: host.ModIgnoreAllModifier}
	keyF6            = host.PreservedKey{VKey: host.VKF6, Modifiers: host.ModOnKeyUp}
)

const (
	keyOnOffDesc = "OnOff"
	keyF6Desc    = "Function 6"
)

type preservedKey struct {
	id   uuid.UUID
	key  host.PreservedKey
	desc string
}

func (s *Service) preservedKeys() []preservedKey {
	return []preservedKey{
		{id: GUIDPreservedKeyOnOff, key: s.toggleKey, desc: keyOnOffDesc},
		{id: GUIDPreservedKeyOnOff, key: keyOnOffKanji, desc: keyOnOffDesc},
		{id: GUIDPreservedKeyF6, key: keyF6, desc: keyF6Desc},
	}
}

func (s *Service) initKeyEventSink() error {
	km, err := s.threadMgr.KeystrokeManager()
	if err != nil {
		return err
	}
	if err := km.AdviseKeyEventSink(s.clientID, s, true); err != nil {
		return err
	}
	s.keySinkClient = s.clientID
	return nil
}

func (s *Service) uninitKeyEventSink() {
	if s.keySinkClient == host.ClientIDNull {
		return
	}
	if km, err := s.threadMgr.KeystrokeManager(); err == nil {
		if err := km.UnadviseKeyEventSink(s.keySinkClient); err != nil {
			s.logger.Warn("unadvise key event sink", "error", err)
		}
	}
	s.keySinkClient = host.ClientIDNull
}

func (s *Service) initPreservedKeys() {
	km, err := s.threadMgr.KeystrokeManager()
	if err != nil {
		s.logger.Warn("preserve keys", "error", err)
		return
	}
	for _, pk := range s.preservedKeys() {
		if err := km.PreserveKey(s.clientID, pk.id, pk.key, pk.desc); err != nil {
			s.logger.Warn("preserve key", "desc", pk.desc, "vkey", pk.key.VKey, "error", err)
			continue
		}
		s.preserved = append(s.preserved, pk)
	}
}

func (s *Service) uninitPreservedKeys() {
	if len(s.preserved) == 0 {
		return
	}
	if km, err := s.threadMgr.KeystrokeManager(); err == nil {
		for _, pk := range s.preserved {
			if err := km.UnpreserveKey(pk.id, pk.key); err != nil {
				s.logger.Warn("unpreserve key", "desc", pk.desc, "error", err)
			}
		}
	}
	s.preserved = nil
}

// keyboardDisabled reads the focused context's compartments. No focused
// document or no context counts as disabled. The first compartment holding a
// value decides.
func (s *Service) keyboardDisabled() bool {
	if s.threadMgr == nil {
		return true
	}
	dm, err := s.threadMgr.Focus()
	if err != nil || dm == nil {
		return true
	}
	ctx, err := dm.Top()
	if err != nil || ctx == nil {
		return true
	}
	cm, err := ctx.CompartmentManager()
	if err != nil {
		return false
	}
	for _, id := range []uuid.UUID{host.GUIDCompartmentKeyboardDisabled, host.GUIDCompartmentEmptyContext} {
		c, err := cm.Compartment(id)
		if err != nil {
			continue
		}
		if v, err := c.Value(); err == nil {
			return v != 0
		}
	}
	return false
}

func (s *Service) openClose() (host.Compartment, error) {
	if s.threadMgr == nil {
		return nil, host.ErrNotImpl
	}
	cm, err := s.threadMgr.CompartmentManager()
	if err != nil {
		return nil, err
	}
	return cm.Compartment(host.GUIDCompartmentKeyboardOpenClose)
}

// KeyboardOpen reports the thread's open/close toggle.
func (s *Service) KeyboardOpen() bool {
	c, err := s.openClose()
	if err != nil {
		return false
	}
	v, err := c.Value()
	return err == nil && v != 0
}

// SetKeyboardOpen writes the thread's open/close toggle.
func (s *Service) SetKeyboardOpen(open bool) error {
	c, err := s.openClose()
	if err != nil {
		return fmt.Errorf("set keyboard open: %w", err)
	}
	var v int32
	if open {
		v = 1
	}
	if err := c.SetValue(s.clientID, v); err != nil {
		return fmt.Errorf("set keyboard open: %w", err)
	}
	s.logger.Debug("keyboard toggled", "open", open)
	return nil
}

// ToggleKey returns the open/close hot key binding in effect.
func (s *Service) ToggleKey() host.PreservedKey {
	return s.toggleKey
}

// KeyboardDisabled reports whether the focused context refuses keyboard input.
func (s *Service) KeyboardDisabled() bool {
	return s.keyboardDisabled()
}

func (s *Service) isKeyEaten(vk host.VirtualKey) bool {
	if s.keyboardDisabled() {
		return false
	}
	if !s.KeyboardOpen() {
		return false
	}
	if vk.IsLetter() {
		return true
	}
	if s.composition.Active() {
		switch vk {
		case host.VKLeft, host.VKRight, host.VKReturn, host.VKSpace:
			return true
		}
	}
	return false
}

// OnKeyboardFocus is called when the service gains or loses keystroke focus.
func (s *Service) OnKeyboardFocus(foreground bool) error {
	s.logger.Debug("OnKeyboardFocus", "foreground", foreground)
	return nil
}

// OnTestKeyDown reports whether OnKeyDown would eat vk.
func (s *Service) OnTestKeyDown(ctx host.Context, vk host.VirtualKey, flags uint32) (bool, error) {
	s.logger.Debug("OnTestKeyDown", "vkey", vk)
	return s.isKeyEaten(vk), nil
}

// OnTestKeyUp reports whether OnKeyUp would eat vk.
func (s *Service) OnTestKeyUp(ctx host.Context, vk host.VirtualKey, flags uint32) (bool, error) {
	s.logger.Debug("OnTestKeyUp", "vkey", vk)
	return s.isKeyEaten(vk), nil
}

// OnKeyDown eats vk when the policy allows and applies it in a synchronous
// edit session.
func (s *Service) OnKeyDown(ctx host.Context, vk host.VirtualKey, flags uint32) (bool, error) {
	s.logger.Debug("OnKeyDown", "vkey", vk)
	eaten := s.isKeyEaten(vk)
	if eaten && ctx != nil {
		s.invokeKeyHandler(ctx, vk)
	}
	return eaten, nil
}

// OnKeyUp reports the same decision as OnKeyDown without acting on it.
func (s *Service) OnKeyUp(ctx host.Context, vk host.VirtualKey, flags uint32) (bool, error) {
	s.logger.Debug("OnKeyUp", "vkey", vk)
	return s.isKeyEaten(vk), nil
}

// OnPreservedKey flips the open/close toggle for the on/off hot key.
func (s *Service) OnPreservedKey(ctx host.Context, id uuid.UUID) (bool, error) {
	s.logger.Debug("OnPreservedKey", "id", id)
	if id != GUIDPreservedKeyOnOff {
		return false, nil
	}
	if err := s.SetKeyboardOpen(!s.KeyboardOpen()); err != nil {
		s.logger.Warn("toggle keyboard", "error", err)
	}
	return true, nil
}

func (s *Service) invokeKeyHandler(ctx host.Context, vk host.VirtualKey) {
	leave := s.scheduler.EnterKeyDispatch()
	defer leave()

	out, err := s.scheduler.Request(ctx, func(ec host.EditCookie) error {
		return s.handleKey(ec, ctx, vk)
	}, host.Sync, host.ReadWrite)
	if err != nil {
		s.logger.Warn("key handler", "vkey", vk, "error", err)
	}
	if out == editsession.Denied {
		s.logger.Debug("key handler not run", "vkey", vk)
	}
}

func (s *Service) handleKey(ec host.EditCookie, ctx host.Context, vk host.VirtualKey) error {
	switch {
	case vk == host.VKLeft:
		return s.handleArrowKey(ec, ctx, ranges.Left)
	case vk == host.VKRight:
		return s.handleArrowKey(ec, ctx, ranges.Right)
	case vk == host.VKReturn:
		return s.terminateComposition(ec, ctx)
	case vk == host.VKSpace:
		return s.applyAttribute(ec, ctx, attribute.Converted)
	case vk.IsLetter():
		return s.handleCharacterKey(ec, ctx, vk)
	}
	return nil
}

func (s *Service) handleCharacterKey(ec host.EditCookie, ctx host.Context, vk host.VirtualKey) error {
	if !s.composition.Active() {
		if err := s.composition.Start(ec, ctx, s); err != nil {
			return err
		}
	}

	sel, err := ctx.Selection(ec)
	if err != nil {
		return fmt.Errorf("read selection: %w", err)
	}
	comp, err := s.composition.Range()
	if err != nil {
		return err
	}
	if !ranges.Covered(ec, sel.Range, comp) {
		s.logger.Debug("selection outside composition, key ignored", "vkey", vk)
		return nil
	}

	// The virtual key code of a letter is its uppercase character.
	if err := sel.Range.SetText(ec, string(rune(vk))); err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	if err := sel.Range.Collapse(ec, host.AnchorEnd); err != nil {
		return err
	}
	if err := ctx.SetSelection(ec, sel); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	return s.applyAttribute(ec, ctx, attribute.Input)
}

func (s *Service) handleArrowKey(ec host.EditCookie, ctx host.Context, dir ranges.Direction) error {
	sel, err := ctx.Selection(ec)
	if err != nil {
		return nil
	}
	comp, err := s.composition.Range()
	if err != nil {
		return nil
	}
	if err := ranges.Step(ec, sel.Range, comp, dir); err != nil {
		return err
	}
	return ctx.SetSelection(ec, sel)
}

func (s *Service) applyAttribute(ec host.EditCookie, ctx host.Context, id attribute.Identity) error {
	r, err := s.composition.Range()
	if err != nil {
		return nil
	}
	if err := s.attributes.Apply(ec, ctx, id, r); err != nil {
		s.logger.Warn("apply display attribute", "identity", id, "error", err)
	}
	return nil
}
