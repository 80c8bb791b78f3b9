// Package editsession requests document locks from the host and runs work
// under them.
package editsession

import (
	"errors"
	"log/slog"

	"textservice/internal/host"
)

// Outcome is the host's answer to a request.
type Outcome int

const (
	Denied Outcome = iota
	Granted
)

func (o Outcome) String() string {
	if o == Granted {
		return "granted"
	}
	return "denied"
}

// Work is the body of an edit session. The cookie is valid only until it
// returns.
type Work func(ec host.EditCookie) error

// Scheduler issues edit-session requests for one client.
//
// Synchronous sessions are only requested while a key is being dispatched;
// every other caller gets an asynchronous session or nothing.
type Scheduler struct {
	clientID host.ClientID
	logger   *slog.Logger
	dispatch int
}

// New returns a scheduler for cid.
func New(cid host.ClientID, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clientID: cid,
		logger:   logger.With("component", "edit_session"),
	}
}

// ClientID returns the client the scheduler requests for.
func (s *Scheduler) ClientID() host.ClientID {
	return s.clientID
}

// EnterKeyDispatch marks the start of a key commit callback. The returned
// function marks its end.
func (s *Scheduler) EnterKeyDispatch() (leave func()) {
	s.dispatch++
	return func() { s.dispatch-- }
}

// InKeyDispatch reports whether a key commit callback is running.
func (s *Scheduler) InKeyDispatch() bool {
	return s.dispatch > 0
}

// Request asks ctx for a session running work. For a granted synchronous
// session the error is the one work returned. A denial is logged and
// reported as Denied with no error; it is never retried.
func (s *Scheduler) Request(ctx host.Context, work Work, timing host.Timing, access host.Access) (Outcome, error) {
	if ctx == nil || work == nil {
		return Denied, nil
	}
	if timing == host.Sync && !s.InKeyDispatch() {
		s.logger.Warn("sync edit session outside key dispatch", "access", access)
		return Denied, nil
	}

	grant, err := ctx.RequestEditSession(s.clientID, host.EditSessionFunc(work), timing, access)
	if err != nil {
		if errors.Is(err, host.ErrDenied) {
			s.logger.Debug("edit session denied", "timing", timing, "access", access, "error", err)
		} else {
			s.logger.Warn("edit session request failed", "timing", timing, "access", access, "error", err)
		}
		return Denied, nil
	}

	s.logger.Debug("edit session granted", "timing", timing, "access", access, "queued", grant.Async)
	return Granted, grant.Err
}
