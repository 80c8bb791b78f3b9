// Package composition owns the single composition a text service keeps per
// context.
package composition

import (
	"fmt"
	"log/slog"

	"textservice/internal/host"
)

// Controller tracks the active composition. The zero state is no
// composition.
type Controller struct {
	current host.Composition
	logger  *slog.Logger
}

// New returns a controller with no composition.
func New(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger.With("component", "composition")}
}

// Active reports whether a composition is in progress.
func (c *Controller) Active() bool {
	return c.current != nil
}

// Current returns the active composition handle, or nil.
func (c *Controller) Current() host.Composition {
	return c.current
}

// Range returns the active composition's range.
func (c *Controller) Range() (host.Range, error) {
	if c.current == nil {
		return nil, host.ErrNoComposition
	}
	return c.current.Range()
}

// Text returns the text under the active composition.
func (c *Controller) Text(ec host.EditCookie) (string, error) {
	r, err := c.Range()
	if err != nil {
		return "", err
	}
	return r.Text(ec)
}

// Start begins a composition at the selection and moves the selection onto
// it. sink is told if the platform ends the composition. On failure no
// composition is recorded.
func (c *Controller) Start(ec host.EditCookie, ctx host.Context, sink host.CompositionSink) error {
	if c.current != nil {
		return fmt.Errorf("start composition: already composing")
	}
	if _, err := ctx.Selection(ec); err != nil {
		return fmt.Errorf("start composition: read selection: %w", err)
	}

	r, err := ctx.InsertTextAtSelection(ec, host.InsertQueryOnly|host.InsertNoDefaultComposition, "")
	if err != nil {
		return fmt.Errorf("start composition: probe insertion: %w", err)
	}

	comp, err := ctx.StartComposition(ec, r, sink)
	if err != nil {
		return fmt.Errorf("start composition: %w", err)
	}
	if comp == nil {
		return fmt.Errorf("start composition: %w", host.ErrNoComposition)
	}
	c.current = comp

	if err := ctx.SetSelection(ec, host.Selection{Range: r}); err != nil {
		c.logger.Warn("move selection onto composition", "error", err)
	}
	c.logger.Debug("composition started")
	return nil
}

// Terminate ends the active composition. The composition is forgotten even
// if the platform call fails.
func (c *Controller) Terminate(ec host.EditCookie) error {
	comp := c.current
	if comp == nil {
		return nil
	}
	c.current = nil
	if err := comp.End(ec); err != nil {
		c.logger.Warn("end composition", "error", err)
		return fmt.Errorf("end composition: %w", err)
	}
	c.logger.Debug("composition terminated")
	return nil
}

// OnCompositionTerminated forgets the composition the platform ended.
func (c *Controller) OnCompositionTerminated(ec host.EditCookie, comp host.Composition) error {
	if c.current == nil {
		return nil
	}
	c.current = nil
	c.logger.Debug("composition terminated by host")
	return nil
}

// Reset forgets the composition without telling the platform.
func (c *Controller) Reset() {
	c.current = nil
}
