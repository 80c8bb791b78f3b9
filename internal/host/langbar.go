package host

import "github.com/google/uuid"

// LangBarItemStyle flags.
const (
	LangBarStyleButtonButton uint32 = 0x00010000
	LangBarStyleButtonMenu   uint32 = 0x00020000
	LangBarStyleButtonToggle uint32 = 0x00040000
)

// Menu item flags.
const (
	MenuChecked uint32 = 0x1
	MenuSubmenu uint32 = 0x2
	MenuGrayed  uint32 = 0x4
)

// LangBarItemInfo describes a language bar item.
type LangBarItemInfo struct {
	ServiceID   uuid.UUID
	ItemID      uuid.UUID
	Style       uint32
	Sort        uint32
	Description string
}

// Menu is filled in by a language bar button when the user opens it.
type Menu interface {
	AddMenuItem(id uint32, flags uint32, text string) error
}

// LangBarItem is a button the platform shows while the service is active.
type LangBarItem interface {
	Source

	Info() LangBarItemInfo
	Status() uint32
	Show(show bool) error
	Tooltip() string
	Text() string
	OnClick() error
	InitMenu(menu Menu) error
	OnMenuSelect(id uint32) error
}
