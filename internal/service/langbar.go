package service

import (
	"github.com/google/uuid"

	"textservice/internal/host"
)

// GUIDLangBarItemButton identifies the language bar button.
var GUIDLangBarItemButton = uuid.MustParse("6a0bde40-6adf-11d7-a6ea-00065b84435c")

// LangBarSinkCookie is the only cookie the button ever issues.
const LangBarSinkCookie host.Cookie = 0x0fab0fab

// Menu item ids.
const (
	MenuItem0         uint32 = 0
	MenuItem1         uint32 = 1
	MenuItemOpenClose uint32 = 2
)

const (
	menuItem0Desc         = "Menu Item Description 0"
	menuItem1Desc         = "Menu Item Description 1"
	menuItemOpenCloseDesc = "Open"
)

// LangBarButton is the menu button the service shows on the language bar.
// It accepts a single sink.
type LangBarButton struct {
	service *Service
	sink    host.LangBarItemSink
	info    host.LangBarItemInfo
}

var _ host.LangBarItem = (*LangBarButton)(nil)

func newLangBarButton(s *Service) *LangBarButton {
	return &LangBarButton{
		service: s,
		info: host.LangBarItemInfo{
			ServiceID:   CLSID,
			ItemID:      GUIDLangBarItemButton,
			Style:       host.LangBarStyleButtonMenu,
			Description: Description,
		},
	}
}

// LangBarItem returns the button while the service is active.
func (s *Service) LangBarItem() *LangBarButton {
	return s.langBarItem
}

func (s *Service) initLangBar() {
	mgr, err := s.threadMgr.LangBarItemManager()
	if err != nil {
		s.logger.Warn("language bar unavailable", "error", err)
		return
	}
	item := newLangBarButton(s)
	if err := mgr.AddItem(item); err != nil {
		s.logger.Warn("add language bar item", "error", err)
		return
	}
	s.langBarItem = item
}

func (s *Service) uninitLangBar() {
	item := s.langBarItem
	if item == nil {
		return
	}
	s.langBarItem = nil
	mgr, err := s.threadMgr.LangBarItemManager()
	if err != nil {
		return
	}
	if err := mgr.RemoveItem(item); err != nil {
		s.logger.Warn("remove language bar item", "error", err)
	}
}

// AdviseSink accepts the platform's item sink.
func (b *LangBarButton) AdviseSink(kind host.SinkKind, sink any) (host.Cookie, error) {
	if kind != host.SinkLangBarItem {
		return host.InvalidCookie, host.ErrCannotConnect
	}
	if b.sink != nil {
		return host.InvalidCookie, host.ErrAdviseLimit
	}
	s, ok := sink.(host.LangBarItemSink)
	if !ok {
		return host.InvalidCookie, host.ErrCannotConnect
	}
	b.sink = s
	return LangBarSinkCookie, nil
}

// UnadviseSink releases the item sink.
func (b *LangBarButton) UnadviseSink(cookie host.Cookie) error {
	if cookie != LangBarSinkCookie || b.sink == nil {
		return host.ErrNoConnection
	}
	b.sink = nil
	return nil
}

// Info describes the button.
func (b *LangBarButton) Info() host.LangBarItemInfo {
	return b.info
}

// Status is always zero.
func (b *LangBarButton) Status() uint32 {
	return 0
}

// Show is not supported.
func (b *LangBarButton) Show(show bool) error {
	return host.ErrNotImpl
}

// Tooltip returns the service description.
func (b *LangBarButton) Tooltip() string {
	return Description
}

// Text returns the service description.
func (b *LangBarButton) Text() string {
	return Description
}

// OnClick does nothing; the button only opens its menu.
func (b *LangBarButton) OnClick() error {
	return nil
}

// InitMenu fills in the button's menu. The open item is grayed while the
// keyboard is disabled and checked while it is open.
func (b *LangBarButton) InitMenu(menu host.Menu) error {
	if err := menu.AddMenuItem(MenuItem0, 0, menuItem0Desc); err != nil {
		return err
	}
	if err := menu.AddMenuItem(MenuItem1, 0, menuItem1Desc); err != nil {
		return err
	}
	var flags uint32
	if b.service.KeyboardDisabled() {
		flags |= host.MenuGrayed
	} else if b.service.KeyboardOpen() {
		flags |= host.MenuChecked
	}
	return menu.AddMenuItem(MenuItemOpenClose, flags, menuItemOpenCloseDesc)
}

// OnMenuSelect toggles the keyboard for the open item.
func (b *LangBarButton) OnMenuSelect(id uint32) error {
	switch id {
	case MenuItemOpenClose:
		if err := b.service.SetKeyboardOpen(!b.service.KeyboardOpen()); err != nil {
			return err
		}
		if b.sink != nil {
			return b.sink.OnUpdate(0)
		}
	}
	return nil
}
