package host

// VirtualKey is a platform virtual key code.
type VirtualKey uint32

const (
	VKReturn VirtualKey = 0x0D
	VKKanji  VirtualKey = 0x19
	VKSpace  VirtualKey = 0x20
	VKLeft   VirtualKey = 0x25
	VKUp     VirtualKey = 0x26
	VKRight  VirtualKey = 0x27
	VKDown   VirtualKey = 0x28
	VKA      VirtualKey = 0x41
	VKZ      VirtualKey = 0x5A
	VKF6     VirtualKey = 0x75
	VKOEM3   VirtualKey = 0xC0 // `~ on US layouts
)

// IsLetter reports whether vk is in VK_A..VK_Z.
func (vk VirtualKey) IsLetter() bool {
	return vk >= VKA && vk <= VKZ
}

// Modifiers is the modifier mask of a preserved key.
type Modifiers uint32

const (
	ModAlt               Modifiers = 0x0001
	ModControl           Modifiers = 0x0002
	ModShift             Modifiers = 0x0004
	ModRAlt              Modifiers = 0x0008
	ModRControl          Modifiers = 0x0010
	ModRShift            Modifiers = 0x0020
	ModLAlt              Modifiers = 0x0040
	ModLControl          Modifiers = 0x0080
	ModLShift            Modifiers = 0x0100
	ModOnKeyUp           Modifiers = 0x40000
	ModIgnoreAllModifier Modifiers = 0x80000
)

// PreservedKey is a hot key binding.
type PreservedKey struct {
	VKey      VirtualKey
	Modifiers Modifiers
}
