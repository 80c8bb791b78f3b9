package memhost

import (
	"fmt"

	"github.com/google/uuid"

	"textservice/internal/host"
)

// Compartment is a shared integer flag.
type Compartment struct {
	set   bool
	value int32
	owner host.ClientID
}

// Value returns the stored value or ErrEmptyValue.
func (c *Compartment) Value() (int32, error) {
	if !c.set {
		return 0, host.ErrEmptyValue
	}
	return c.value, nil
}

// SetValue stores v on behalf of cid.
func (c *Compartment) SetValue(cid host.ClientID, v int32) error {
	c.set, c.value, c.owner = true, v, cid
	return nil
}

// Clear makes the compartment empty again.
func (c *Compartment) Clear() {
	*c = Compartment{}
}

// CompartmentManager holds compartments by GUID.
type CompartmentManager struct {
	items map[uuid.UUID]*Compartment
}

func newCompartmentManager() *CompartmentManager {
	return &CompartmentManager{items: make(map[uuid.UUID]*Compartment)}
}

// Compartment returns the compartment for id, creating it empty.
func (m *CompartmentManager) Compartment(id uuid.UUID) (host.Compartment, error) {
	return m.Get(id), nil
}

// Get is Compartment with the concrete type.
func (m *CompartmentManager) Get(id uuid.UUID) *Compartment {
	c, ok := m.items[id]
	if !ok {
		c = &Compartment{}
		m.items[id] = c
	}
	return c
}

// Set stores v as the platform.
func (m *CompartmentManager) Set(id uuid.UUID, v int32) {
	_ = m.Get(id).SetValue(host.ClientIDNull, v)
}

// CategoryManager assigns atoms to GUIDs.
type CategoryManager struct {
	atoms map[uuid.UUID]host.GUIDAtom
	calls int
}

func newCategoryManager() *CategoryManager {
	return &CategoryManager{atoms: make(map[uuid.UUID]host.GUIDAtom)}
}

// RegisterGUID returns a stable atom for id.
func (m *CategoryManager) RegisterGUID(id uuid.UUID) (host.GUIDAtom, error) {
	m.calls++
	if a, ok := m.atoms[id]; ok {
		return a, nil
	}
	a := host.GUIDAtom(0x100 + len(m.atoms))
	m.atoms[id] = a
	return a, nil
}

// Calls returns how many times RegisterGUID ran.
func (m *CategoryManager) Calls() int {
	return m.calls
}

// Atom returns the atom already assigned to id.
func (m *CategoryManager) Atom(id uuid.UUID) (host.GUIDAtom, bool) {
	a, ok := m.atoms[id]
	return a, ok
}

type preserved struct {
	cid  host.ClientID
	id   uuid.UUID
	key  host.PreservedKey
	desc string
}

// KeystrokeManager routes keys to the foreground key sink.
type KeystrokeManager struct {
	tm        *ThreadManager
	sinks     map[host.ClientID]host.KeyEventSink
	order     []host.ClientID
	preserved []preserved
}

func newKeystrokeManager(tm *ThreadManager) *KeystrokeManager {
	return &KeystrokeManager{tm: tm, sinks: make(map[host.ClientID]host.KeyEventSink)}
}

// AdviseKeyEventSink installs the key sink of cid.
func (m *KeystrokeManager) AdviseKeyEventSink(cid host.ClientID, sink host.KeyEventSink, foreground bool) error {
	if m.tm.Fail.AdviseKeyEventSink {
		return fmt.Errorf("%w: injected failure", host.ErrCannotConnect)
	}
	if _, ok := m.sinks[cid]; ok {
		return host.ErrAdviseLimit
	}
	m.sinks[cid] = sink
	if foreground {
		m.order = append([]host.ClientID{cid}, m.order...)
		_ = sink.OnKeyboardFocus(true)
	} else {
		m.order = append(m.order, cid)
	}
	return nil
}

// UnadviseKeyEventSink removes the key sink of cid.
func (m *KeystrokeManager) UnadviseKeyEventSink(cid host.ClientID) error {
	if _, ok := m.sinks[cid]; !ok {
		return host.ErrNoConnection
	}
	delete(m.sinks, cid)
	for i, c := range m.order {
		if c == cid {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *KeystrokeManager) foreground() host.KeyEventSink {
	if len(m.order) == 0 {
		return nil
	}
	return m.sinks[m.order[0]]
}

// PreserveKey registers a hot key for cid.
func (m *KeystrokeManager) PreserveKey(cid host.ClientID, id uuid.UUID, key host.PreservedKey, desc string) error {
	if m.tm.Fail.PreserveKey {
		return fmt.Errorf("preserve key: %w", host.ErrNotImpl)
	}
	for _, p := range m.preserved {
		if p.id == id && p.key == key {
			return host.ErrAdviseLimit
		}
	}
	m.preserved = append(m.preserved, preserved{cid: cid, id: id, key: key, desc: desc})
	return nil
}

// UnpreserveKey drops a hot key registration.
func (m *KeystrokeManager) UnpreserveKey(id uuid.UUID, key host.PreservedKey) error {
	for i, p := range m.preserved {
		if p.id == id && p.key == key {
			m.preserved = append(m.preserved[:i], m.preserved[i+1:]...)
			return nil
		}
	}
	return host.ErrNotFound
}

func (m *KeystrokeManager) lookup(key host.PreservedKey) (preserved, bool) {
	for _, p := range m.preserved {
		if p.key == key {
			return p, true
		}
	}
	return preserved{}, false
}

// Preserved returns the description registered for key, if any.
func (m *KeystrokeManager) Preserved(key host.PreservedKey) (string, bool) {
	p, ok := m.lookup(key)
	return p.desc, ok
}

// PreservedCount returns the number of hot key registrations.
func (m *KeystrokeManager) PreservedCount() int {
	return len(m.preserved)
}

// Advised reports whether cid has a key sink.
func (m *KeystrokeManager) Advised(cid host.ClientID) bool {
	_, ok := m.sinks[cid]
	return ok
}

// Keystrokes gives tests direct access to the key router.
func (tm *ThreadManager) Keystrokes() *KeystrokeManager {
	return tm.keystrokes
}

// LangBarItemManager holds language bar items and listens on each one.
type LangBarItemManager struct {
	tm    *ThreadManager
	items []*langBarEntry
}

type langBarEntry struct {
	item    host.LangBarItem
	cookie  host.Cookie
	updates []uint32
}

func (e *langBarEntry) OnUpdate(flags uint32) error {
	e.updates = append(e.updates, flags)
	return nil
}

func newLangBarItemManager(tm *ThreadManager) *LangBarItemManager {
	return &LangBarItemManager{tm: tm}
}

// AddItem shows item and subscribes to its updates.
func (m *LangBarItemManager) AddItem(item host.LangBarItem) error {
	if m.tm.Fail.AddLangBarItem {
		return fmt.Errorf("add item: %w", host.ErrNotImpl)
	}
	e := &langBarEntry{item: item}
	cookie, err := item.AdviseSink(host.SinkLangBarItem, e)
	if err != nil {
		return err
	}
	e.cookie = cookie
	m.items = append(m.items, e)
	return nil
}

// RemoveItem unsubscribes from item and hides it.
func (m *LangBarItemManager) RemoveItem(item host.LangBarItem) error {
	for i, e := range m.items {
		if e.item == item {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return item.UnadviseSink(e.cookie)
		}
	}
	return host.ErrNotFound
}

// Items returns the items currently shown.
func (m *LangBarItemManager) Items() []host.LangBarItem {
	out := make([]host.LangBarItem, 0, len(m.items))
	for _, e := range m.items {
		out = append(out, e.item)
	}
	return out
}

// Updates returns the update flags item reported so far.
func (m *LangBarItemManager) Updates(item host.LangBarItem) []uint32 {
	for _, e := range m.items {
		if e.item == item {
			return append([]uint32(nil), e.updates...)
		}
	}
	return nil
}

// MenuItem is one entry added to a Menu.
type MenuItem struct {
	ID    uint32
	Flags uint32
	Text  string
}

// Menu records the items a language bar button adds.
type Menu struct {
	Items []MenuItem
}

// AddMenuItem appends an entry.
func (m *Menu) AddMenuItem(id, flags uint32, text string) error {
	m.Items = append(m.Items, MenuItem{ID: id, Flags: flags, Text: text})
	return nil
}
