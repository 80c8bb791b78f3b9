package ime

import "textservice/internal/host"

// IBus key event state masks
const (
	IBusShiftMask   uint32 = 1 << 0
	IBusLockMask    uint32 = 1 << 1
	IBusControlMask uint32 = 1 << 2
	IBusMod1Mask    uint32 = 1 << 3 // Alt
	IBusMod4Mask    uint32 = 1 << 6 // Super/Meta
	IBusReleaseMask uint32 = 1 << 30
)

// X11 key symbols the engine understands.
const (
	KeysymSpace   uint32 = 0x0020
	KeysymGrave   uint32 = 0x0060
	KeysymA       uint32 = 0x0041
	KeysymZ       uint32 = 0x005a
	KeysymLowerA  uint32 = 0x0061
	KeysymLowerZ  uint32 = 0x007a
	KeysymReturn  uint32 = 0xff0d
	KeysymKanji   uint32 = 0xff21
	KeysymLeft    uint32 = 0xff51
	KeysymUp      uint32 = 0xff52
	KeysymRight   uint32 = 0xff53
	KeysymDown    uint32 = 0xff54
	KeysymKPEnter uint32 = 0xff8d
	KeysymF6      uint32 = 0xffc3
)

// KeyEvent is an IBus key event translated to the text service's terms.
type KeyEvent struct {
	VKey      host.VirtualKey
	Modifiers host.Modifiers
	Release   bool
}

// Preserved returns the hot key binding this event would match.
func (k KeyEvent) Preserved() host.PreservedKey {
	mods := k.Modifiers
	if k.Release {
		mods |= host.ModOnKeyUp
	}
	return host.PreservedKey{VKey: k.VKey, Modifiers: mods}
}

// Chorded reports whether Control or Alt is held. Super counts as Alt.
func (k KeyEvent) Chorded() bool {
	return k.Modifiers&(host.ModAlt|host.ModControl) != 0
}

// TranslateKey maps an IBus keyval and modifier state to a virtual key.
// ok is false for keys the text service has no code for.
func TranslateKey(keyval, state uint32) (ev KeyEvent, ok bool) {
	ev.Release = state&IBusReleaseMask != 0
	if state&IBusShiftMask != 0 {
		ev.Modifiers |= host.ModShift
	}
	if state&IBusControlMask != 0 {
		ev.Modifiers |= host.ModControl
	}
	if state&(IBusMod1Mask|IBusMod4Mask) != 0 {
		ev.Modifiers |= host.ModAlt
	}

	switch {
	case keyval >= KeysymA && keyval <= KeysymZ:
		ev.VKey = host.VirtualKey(keyval)
	case keyval >= KeysymLowerA && keyval <= KeysymLowerZ:
		ev.VKey = host.VirtualKey(keyval - (KeysymLowerA - KeysymA))
	default:
		switch keyval {
		case KeysymSpace:
			ev.VKey = host.VKSpace
		case KeysymReturn, KeysymKPEnter:
			ev.VKey = host.VKReturn
		case KeysymLeft:
			ev.VKey = host.VKLeft
		case KeysymRight:
			ev.VKey = host.VKRight
		case KeysymUp:
			ev.VKey = host.VKUp
		case KeysymDown:
			ev.VKey = host.VKDown
		case KeysymGrave, 0x007e:
			ev.VKey = host.VKOEM3
		case KeysymKanji:
			ev.VKey = host.VKKanji
		case KeysymF6:
			ev.VKey = host.VKF6
		default:
			return ev, false
		}
	}
	return ev, true
}
