package attribute

import (
	"encoding/binary"
	"fmt"
)

// RecordSize is the encoded size of a Record.
const RecordSize = 36

// ColorType says how a Color value is interpreted.
type ColorType int32

const (
	ColorNone   ColorType = 0
	ColorSystem ColorType = 1
	ColorRGB    ColorType = 2
)

// Color is a typed color. For ColorRGB the value is 0x00BBGGRR.
type Color struct {
	Type  ColorType
	Value uint32
}

// RGB returns an RGB color.
func RGB(r, g, b uint8) Color {
	return Color{Type: ColorRGB, Value: uint32(r) | uint32(g)<<8 | uint32(b)<<16}
}

// LineStyle is the underline style.
type LineStyle int32

const (
	LineNone     LineStyle = 0
	LineSolid    LineStyle = 1
	LineDot      LineStyle = 2
	LineDash     LineStyle = 3
	LineSquiggle LineStyle = 4
)

// Attr classifies the text for the platform.
type Attr int32

const (
	AttrOther              Attr = -1
	AttrInput              Attr = 0
	AttrTargetConverted    Attr = 1
	AttrConverted          Attr = 2
	AttrTargetNotConverted Attr = 3
	AttrInputError         Attr = 4
	AttrFixedConverted     Attr = 5
)

// Record is the style applied to text tagged with a display attribute.
type Record struct {
	Text       Color
	Background Color
	Line       LineStyle
	BoldLine   bool
	LineColor  Color
	Attr       Attr
}

// MarshalBinary encodes r in the fixed little-endian layout used for
// persisted overrides.
func (r Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], uint32(r.Text.Type))
	le.PutUint32(buf[4:], r.Text.Value)
	le.PutUint32(buf[8:], uint32(r.Background.Type))
	le.PutUint32(buf[12:], r.Background.Value)
	le.PutUint32(buf[16:], uint32(r.Line))
	if r.BoldLine {
		le.PutUint32(buf[20:], 1)
	}
	le.PutUint32(buf[24:], uint32(r.LineColor.Type))
	le.PutUint32(buf[28:], r.LineColor.Value)
	le.PutUint32(buf[32:], uint32(r.Attr))
	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("style record: got %d bytes, want %d", len(data), RecordSize)
	}
	le := binary.LittleEndian
	*r = Record{
		Text:       Color{Type: ColorType(le.Uint32(data[0:])), Value: le.Uint32(data[4:])},
		Background: Color{Type: ColorType(le.Uint32(data[8:])), Value: le.Uint32(data[12:])},
		Line:       LineStyle(le.Uint32(data[16:])),
		BoldLine:   le.Uint32(data[20:]) != 0,
		LineColor:  Color{Type: ColorType(le.Uint32(data[24:])), Value: le.Uint32(data[28:])},
		Attr:       Attr(int32(le.Uint32(data[32:]))),
	}
	return nil
}
