package ime

import "github.com/godbus/dbus/v5"

// IBus attribute types and underline styles.
const (
	ibusAttrTypeUnderline   uint32 = 1
	ibusAttrUnderlineSingle uint32 = 1
)

// ibusText is the serialized IBusText: (sa{sv}sv).
type ibusText struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	Attrs       dbus.Variant
}

// ibusAttrList is the serialized IBusAttrList: (sa{sv}av).
type ibusAttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attributes  []dbus.Variant
}

// ibusAttribute is the serialized IBusAttribute: (sa{sv}uuuu).
type ibusAttribute struct {
	Name        string
	Attachments map[string]dbus.Variant
	Type        uint32
	Value       uint32
	Start       uint32
	End         uint32
}

// newIBusText wraps text for a signal. Preedit text is underlined across
// its whole length.
func newIBusText(text string, underline bool) ibusText {
	attrs := ibusAttrList{
		Name:        "IBusAttrList",
		Attachments: map[string]dbus.Variant{},
		Attributes:  []dbus.Variant{},
	}
	if n := uint32(len([]rune(text))); underline && n > 0 {
		attrs.Attributes = append(attrs.Attributes, dbus.MakeVariant(ibusAttribute{
			Name:        "IBusAttribute",
			Attachments: map[string]dbus.Variant{},
			Type:        ibusAttrTypeUnderline,
			Value:       ibusAttrUnderlineSingle,
			Start:       0,
			End:         n,
		}))
	}
	return ibusText{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        text,
		Attrs:       dbus.MakeVariant(attrs),
	}
}
