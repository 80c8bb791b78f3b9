package script

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"textservice/internal/attribute"
	"textservice/internal/host"
	"textservice/internal/host/memhost"
	"textservice/internal/service"
)

// Options configure Run.
type Options struct {
	Logger    *slog.Logger
	Styles    attribute.OverrideStore
	ToggleKey host.PreservedKey
	// Fail makes the selected host calls fail.
	Fail memhost.Failures
}

// StepResult records what a step did.
type StepResult struct {
	Index int
	Op    Op
	Eaten bool
}

// Result is the state of the document after a script ran.
type Result struct {
	Text        string
	Selection   [2]int
	Composition [2]int
	Composing   bool
	Open        bool
	Steps       []StepResult
	// LeakedCookies counts sink subscriptions still held after Deactivate.
	LeakedCookies int
}

// ExpectationError reports the first expectation that did not hold.
type ExpectationError struct {
	Step  int
	Field string
	Want  any
	Got   any
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("step %d: %s: want %v, got %v", e.Step, e.Field, e.Want, e.Got)
}

// ErrLeakedCookies is returned when deactivation left subscriptions behind.
var ErrLeakedCookies = errors.New("sink subscriptions leaked after deactivate")

type runner struct {
	tm     *memhost.ThreadManager
	dm     *memhost.DocumentManager
	ctx    *memhost.Context
	svc    *service.Service
	logger *slog.Logger
}

// Run replays s against a fresh in-memory host. The returned Result is
// filled in as far as the script got, even on error.
func Run(s *Script, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "replay")

	tm := memhost.New()
	tm.Fail = opts.Fail
	dm := tm.CreateDocumentManager()
	ctx := dm.Push(s.Text)
	tm.SetFocus(dm)
	before := tm.OutstandingCookies()

	svc := service.New(service.Options{
		Logger:    opts.Logger,
		Styles:    opts.Styles,
		ToggleKey: opts.ToggleKey,
	})
	r := &runner{tm: tm, dm: dm, ctx: ctx, svc: svc, logger: logger}
	res := &Result{}

	if _, err := tm.Activate(svc); err != nil {
		r.snapshot(res)
		res.LeakedCookies = tm.OutstandingCookies() - before
		return res, fmt.Errorf("activate: %w", err)
	}

	runErr := svc.SetKeyboardOpen(s.Open == nil || *s.Open)
	if runErr == nil {
		runErr = r.steps(s.Steps, res)
	}
	r.snapshot(res)

	if err := svc.Deactivate(); err != nil && runErr == nil {
		runErr = fmt.Errorf("deactivate: %w", err)
	}
	res.LeakedCookies = tm.OutstandingCookies() - before
	if res.LeakedCookies != 0 && runErr == nil {
		runErr = fmt.Errorf("%w: %d", ErrLeakedCookies, res.LeakedCookies)
	}
	return res, runErr
}

func (r *runner) steps(steps []Step, res *Result) error {
	for i, st := range steps {
		eaten, err := r.step(i, st)
		if err != nil {
			return err
		}
		res.Steps = append(res.Steps, StepResult{Index: i, Op: st.Op, Eaten: eaten})
		if st.Op != OpExpect && st.Eaten != nil && *st.Eaten != eaten {
			return &ExpectationError{Step: i, Field: "eaten", Want: *st.Eaten, Got: eaten}
		}
	}
	return nil
}

func (r *runner) step(i int, st Step) (bool, error) {
	r.logger.Debug("step", "index", i, "op", st.Op)

	switch st.Op {
	case OpKey, OpKeyUp:
		vk, err := VirtualKey(st.Key)
		if err != nil {
			return false, fmt.Errorf("step %d: %w", i, err)
		}
		if st.Op == OpKeyUp {
			return r.tm.SendKeyUp(vk)
		}
		return r.tm.SendKeyDown(vk)

	case OpHotKey:
		key, err := r.hotKey(st.HotKey)
		if err != nil {
			return false, fmt.Errorf("step %d: %w", i, err)
		}
		return r.tm.SendPreservedKey(key)

	case OpSelect:
		if err := r.ctx.MoveSelection(st.Start, st.End); err != nil {
			return false, fmt.Errorf("step %d: select: %w", i, err)
		}

	case OpTerminate:
		if err := r.ctx.TerminateComposition(); err != nil && !errors.Is(err, host.ErrNoComposition) {
			return false, fmt.Errorf("step %d: terminate: %w", i, err)
		}

	case OpPump:
		r.tm.Pump()

	case OpFocus:
		if st.Value {
			r.tm.SetFocus(r.dm)
		} else {
			r.tm.SetFocus(nil)
		}

	case OpDisable:
		var v int32
		if st.Value {
			v = 1
		}
		r.ctx.Compartments().Set(host.GUIDCompartmentKeyboardDisabled, v)

	case OpExpect:
		return false, r.expect(i, st)

	default:
		return false, fmt.Errorf("step %d: unknown op %q", i, st.Op)
	}
	return false, nil
}

func (r *runner) hotKey(name string) (host.PreservedKey, error) {
	switch name {
	case "onoff":
		return r.svc.ToggleKey(), nil
	case "kanji":
		return host.PreservedKey{VKey: host.VKKanji, Modifiers: host.ModIgnoreAllModifier}, nil
	case "f6":
		return host.PreservedKey{VKey: host.VKF6, Modifiers: host.ModOnKeyUp}, nil
	}
	return host.PreservedKey{}, fmt.Errorf("unknown hot key %q", name)
}

func (r *runner) expect(i int, st Step) error {
	var got Result
	r.snapshot(&got)

	if st.Text != nil && *st.Text != got.Text {
		return &ExpectationError{Step: i, Field: "text", Want: *st.Text, Got: got.Text}
	}
	if st.Composing != nil && *st.Composing != got.Composing {
		return &ExpectationError{Step: i, Field: "composing", Want: *st.Composing, Got: got.Composing}
	}
	if st.Open != nil && *st.Open != got.Open {
		return &ExpectationError{Step: i, Field: "open", Want: *st.Open, Got: got.Open}
	}
	if st.Selection != nil && !slices.Equal(st.Selection, got.Selection[:]) {
		return &ExpectationError{Step: i, Field: "selection", Want: st.Selection, Got: got.Selection}
	}
	if st.Composition != nil {
		if !got.Composing {
			return &ExpectationError{Step: i, Field: "composition", Want: st.Composition, Got: "none"}
		}
		if !slices.Equal(st.Composition, got.Composition[:]) {
			return &ExpectationError{Step: i, Field: "composition", Want: st.Composition, Got: got.Composition}
		}
	}
	if st.Pending != nil && *st.Pending != r.ctx.Pending() {
		return &ExpectationError{Step: i, Field: "pending", Want: *st.Pending, Got: r.ctx.Pending()}
	}
	return nil
}

func (r *runner) snapshot(res *Result) {
	res.Text = r.ctx.Text()
	res.Selection[0], res.Selection[1] = r.ctx.SelectionOffsets()
	s, e, ok := r.ctx.CompositionOffsets()
	res.Composing = ok
	res.Composition = [2]int{s, e}
	res.Open = r.svc.KeyboardOpen()
}
