package attribute

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"textservice/internal/host"
)

// OverrideStore persists user style overrides keyed by identity name.
// Get returns host.ErrNotFound when nothing is stored.
type OverrideStore interface {
	Get(name string) ([]byte, error)
	Put(name string, record []byte) error
	Delete(name string) error
}

// Provider exposes the display attributes to the platform.
type Provider struct {
	store  OverrideStore
	logger *slog.Logger
}

// NewProvider returns a provider. store may be nil, in which case every
// identity uses its default record and SetValue fails.
func NewProvider(store OverrideStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:  store,
		logger: logger.With("component", "display_attribute_provider"),
	}
}

// Enum returns an enumerator positioned at the first identity.
func (p *Provider) Enum() *Enumerator {
	return &Enumerator{provider: p}
}

// Info returns the descriptor for guid.
func (p *Provider) Info(guid uuid.UUID) (*Info, error) {
	id, ok := Lookup(guid)
	if !ok {
		return nil, fmt.Errorf("display attribute %s: %w", guid, host.ErrNotFound)
	}
	return p.info(id), nil
}

func (p *Provider) info(id Identity) *Info {
	return &Info{id: id, provider: p}
}

// Info describes one display attribute.
type Info struct {
	id       Identity
	provider *Provider
}

// Identity returns which attribute this is.
func (i *Info) Identity() Identity { return i.id }

// GUID returns the attribute's GUID.
func (i *Info) GUID() uuid.UUID { return i.id.GUID() }

// Description returns the attribute's display name.
func (i *Info) Description() string { return i.id.Description() }

// Value returns the persisted override when one exists and decodes,
// otherwise the default record.
func (i *Info) Value() Record {
	st := i.provider.store
	if st == nil {
		return i.id.Default()
	}
	data, err := st.Get(i.id.Name())
	if err != nil {
		if !errors.Is(err, host.ErrNotFound) {
			i.provider.logger.Warn("read style override", "identity", i.id, "error", err)
		}
		return i.id.Default()
	}
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		i.provider.logger.Warn("ignoring malformed style override", "identity", i.id, "error", err)
		return i.id.Default()
	}
	return rec
}

// SetValue persists rec as the override.
func (i *Info) SetValue(rec Record) error {
	st := i.provider.store
	if st == nil {
		return fmt.Errorf("set %s style: no override store", i.id)
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	if err := st.Put(i.id.Name(), data); err != nil {
		return fmt.Errorf("set %s style: %w", i.id, err)
	}
	return nil
}

// Reset removes the override so Value returns the default again.
func (i *Info) Reset() error {
	st := i.provider.store
	if st == nil {
		return nil
	}
	if err := st.Delete(i.id.Name()); err != nil && !errors.Is(err, host.ErrNotFound) {
		return fmt.Errorf("reset %s style: %w", i.id, err)
	}
	return nil
}

// Enumerator walks the display attributes.
type Enumerator struct {
	provider *Provider
	index    int
}

// Next returns up to n descriptors and advances past them.
func (e *Enumerator) Next(n int) []*Info {
	var out []*Info
	for len(out) < n && e.index < len(Identities) {
		out = append(out, e.provider.info(Identities[e.index]))
		e.index++
	}
	return out
}

// Skip advances past up to n descriptors and returns how many were skipped.
func (e *Enumerator) Skip(n int) int {
	skipped := 0
	for skipped < n && e.index < len(Identities) {
		e.index++
		skipped++
	}
	return skipped
}

// Reset rewinds to the first descriptor.
func (e *Enumerator) Reset() {
	e.index = 0
}

// Clone returns an enumerator at the same position.
func (e *Enumerator) Clone() *Enumerator {
	c := *e
	return &c
}
