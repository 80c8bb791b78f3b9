package attribute

import (
	"errors"
	"fmt"
	"log/slog"

	"textservice/internal/host"
)

// Assigner writes display attribute atoms over composition ranges.
//
// Atoms are registered once per activation by Register and cached; Apply
// never goes back to the platform for them.
type Assigner struct {
	atoms      [len(descriptors)]host.GUIDAtom
	registered bool
	logger     *slog.Logger
}

// NewAssigner returns an assigner with nothing registered.
func NewAssigner(logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{logger: logger.With("component", "display_attribute")}
}

// Register maps every identity to its atom. A second call is a no-op until
// Reset.
func (a *Assigner) Register(cm host.CategoryManager) error {
	if a.registered {
		return nil
	}
	if cm == nil {
		return fmt.Errorf("register display attributes: %w", host.ErrNotImpl)
	}
	var atoms [len(descriptors)]host.GUIDAtom
	for _, id := range Identities {
		atom, err := cm.RegisterGUID(id.GUID())
		if err != nil {
			return fmt.Errorf("register %s: %w", id, err)
		}
		atoms[id] = atom
	}
	a.atoms = atoms
	a.registered = true
	a.logger.Debug("display attributes registered", "input", atoms[Input], "converted", atoms[Converted])
	return nil
}

// Registered reports whether Register has succeeded since the last Reset.
func (a *Assigner) Registered() bool {
	return a.registered
}

// Atom returns the cached atom for id.
func (a *Assigner) Atom(id Identity) (host.GUIDAtom, bool) {
	if !a.registered || !id.valid() {
		return 0, false
	}
	return a.atoms[id], true
}

// Reset forgets the cached atoms.
func (a *Assigner) Reset() {
	a.atoms = [len(descriptors)]host.GUIDAtom{}
	a.registered = false
}

// Apply tags r with id. A context without an attribute property store, or an
// assigner with nothing registered, makes this a no-op.
func (a *Assigner) Apply(ec host.EditCookie, ctx host.Context, id Identity, r host.Range) error {
	atom, ok := a.Atom(id)
	if !ok {
		a.logger.Debug("display attribute not registered", "identity", id)
		return nil
	}
	prop, err := attributeProperty(ctx)
	if err != nil || prop == nil {
		return err
	}
	if err := prop.SetValue(ec, r, atom); err != nil {
		return fmt.Errorf("apply %s attribute: %w", id, err)
	}
	return nil
}

// Clear removes any display attribute from r.
func (a *Assigner) Clear(ec host.EditCookie, ctx host.Context, r host.Range) error {
	prop, err := attributeProperty(ctx)
	if err != nil || prop == nil {
		return err
	}
	if err := prop.Clear(ec, r); err != nil {
		return fmt.Errorf("clear display attribute: %w", err)
	}
	return nil
}

// Current returns the identity tagged uniformly over r.
func (a *Assigner) Current(ec host.EditCookie, ctx host.Context, r host.Range) (Identity, bool) {
	prop, err := attributeProperty(ctx)
	if err != nil || prop == nil {
		return 0, false
	}
	v, err := prop.Value(ec, r)
	if err != nil {
		return 0, false
	}
	atom, ok := v.(host.GUIDAtom)
	if !ok || !a.registered {
		return 0, false
	}
	for _, id := range Identities {
		if a.atoms[id] == atom {
			return id, true
		}
	}
	return 0, false
}

func attributeProperty(ctx host.Context) (host.Property, error) {
	if ctx == nil {
		return nil, nil
	}
	prop, err := ctx.Property(host.GUIDPropAttribute)
	if errors.Is(err, host.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attribute property: %w", err)
	}
	return prop, nil
}
