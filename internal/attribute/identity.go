// Package attribute tags composition text with display attributes.
//
// Two attributes exist. Input marks text being typed; Converted marks text
// the user has accepted with Space. Each is identified to the platform by a
// GUID, which the platform turns into an atom once per activation, and is
// described by a style record the user may override.
package attribute

import (
	"fmt"

	"github.com/google/uuid"
)

// Identity is one of the two display attributes.
type Identity int

const (
	Input Identity = iota
	Converted
)

// Identities lists every identity in enumeration order.
var Identities = []Identity{Input, Converted}

var (
	GUIDInput     = uuid.MustParse("4e1aa3fe-6c7f-11d7-a6ec-00065b84435c")
	GUIDConverted = uuid.MustParse("4e1aa3ff-6c7f-11d7-a6ec-00065b84435c")
)

type descriptor struct {
	guid        uuid.UUID
	name        string
	description string
	record      Record
}

var descriptors = [...]descriptor{
	Input: {
		guid:        GUIDInput,
		name:        "DisplayAttributeInput",
		description: "TextService Display Attribute Input",
		record: Record{
			Line: LineDot,
			Attr: AttrInput,
		},
	},
	Converted: {
		guid:        GUIDConverted,
		name:        "DisplayAttributeConverted",
		description: "TextService Display Attribute Converted",
		record: Record{
			Text:       RGB(255, 255, 255),
			Background: RGB(0, 255, 255),
			Attr:       AttrTargetConverted,
		},
	},
}

func (id Identity) valid() bool {
	return id >= 0 && int(id) < len(descriptors)
}

// GUID returns the identity's GUID.
func (id Identity) GUID() uuid.UUID {
	if !id.valid() {
		return uuid.Nil
	}
	return descriptors[id].guid
}

// Name is the key persisted overrides are stored under.
func (id Identity) Name() string {
	if !id.valid() {
		return ""
	}
	return descriptors[id].name
}

// Description is the human readable name shown by the platform.
func (id Identity) Description() string {
	if !id.valid() {
		return ""
	}
	return descriptors[id].description
}

// Default returns the built-in style record.
func (id Identity) Default() Record {
	if !id.valid() {
		return Record{}
	}
	return descriptors[id].record
}

func (id Identity) String() string {
	switch id {
	case Input:
		return "input"
	case Converted:
		return "converted"
	default:
		return fmt.Sprintf("identity(%d)", int(id))
	}
}

// Lookup finds the identity for a GUID.
func Lookup(guid uuid.UUID) (Identity, bool) {
	for _, id := range Identities {
		if id.GUID() == guid {
			return id, true
		}
	}
	return 0, false
}

// ByName finds the identity with the given persisted name or short name.
func ByName(name string) (Identity, bool) {
	for _, id := range Identities {
		if id.Name() == name || id.String() == name {
			return id, true
		}
	}
	return 0, false
}
