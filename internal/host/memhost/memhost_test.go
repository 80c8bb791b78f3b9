package memhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textservice/internal/host"
)

const testClient host.ClientID = 7

func focusedContext(t *testing.T, text string) (*ThreadManager, *Context) {
	t.Helper()
	tm := New()
	dm := tm.CreateDocumentManager()
	ctx := dm.Push(text)
	tm.SetFocus(dm)
	return tm, ctx
}

func edit(t *testing.T, ctx *Context, fn func(ec host.EditCookie) error) {
	t.Helper()
	g, err := ctx.RequestEditSession(testClient, host.EditSessionFunc(fn), host.Sync, host.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, g.Err)
}

type endEditRecorder struct {
	calls      int
	selChanged []bool
	updates    [][][2]int
}

func (r *endEditRecorder) OnEndEdit(ctx host.Context, ec host.EditCookie, rec host.EditRecord) error {
	r.calls++
	changed, _ := rec.SelectionChanged()
	r.selChanged = append(r.selChanged, changed)
	ranges, err := rec.TextUpdates(ec)
	if err != nil {
		return err
	}
	var spans [][2]int
	for _, rg := range ranges {
		s, e := rg.(*Range).Offsets()
		spans = append(spans, [2]int{s, e})
	}
	r.updates = append(r.updates, spans)
	return nil
}

func TestRange_AnchorsFollowEdits(t *testing.T) {
	_, ctx := focusedContext(t, "hello world")

	var word *Range
	edit(t, ctx, func(ec host.EditCookie) error {
		word = ctx.newRange(6, 11)
		inner := ctx.newRange(0, 5)
		require.NoError(t, inner.SetText(ec, "hi"))
		return nil
	})

	s, e := word.Offsets()
	assert.Equal(t, 3, s)
	assert.Equal(t, 8, e)
	assert.Equal(t, "hi world", ctx.Text())
}

func TestRange_InsertAtCollapsedRange(t *testing.T) {
	_, ctx := focusedContext(t, "ab")

	edit(t, ctx, func(ec host.EditCookie) error {
		r := ctx.newRange(1, 1)
		require.NoError(t, r.SetText(ec, "XY"))
		s, e := r.Offsets()
		assert.Equal(t, 1, s)
		assert.Equal(t, 3, e)
		return nil
	})
	assert.Equal(t, "aXYb", ctx.Text())
}

func TestRange_RequiresLock(t *testing.T) {
	_, ctx := focusedContext(t, "abc")
	r := ctx.newRange(0, 1)

	_, err := r.Text(42)
	assert.ErrorIs(t, err, host.ErrNoLock)

	g, err := ctx.RequestEditSession(testClient, host.EditSessionFunc(func(ec host.EditCookie) error {
		return r.SetText(ec, "x")
	}), host.Sync, host.ReadOnly)
	require.NoError(t, err)
	assert.ErrorIs(t, g.Err, host.ErrNoLock)
	assert.Equal(t, "abc", ctx.Text())
}

func TestRange_CompareAndShift(t *testing.T) {
	_, ctx := focusedContext(t, "abcdef")

	edit(t, ctx, func(ec host.EditCookie) error {
		a := ctx.newRange(1, 4)
		b := ctx.newRange(2, 3)

		v, err := a.CompareStart(ec, b, host.AnchorStart)
		require.NoError(t, err)
		assert.Equal(t, -1, v)

		v, err = a.CompareEnd(ec, b, host.AnchorEnd)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		moved, err := b.ShiftStart(ec, -5)
		require.NoError(t, err)
		assert.Equal(t, -2, moved)

		moved, err = b.ShiftStart(ec, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, moved)
		s, e := b.Offsets()
		assert.Equal(t, 5, s)
		assert.Equal(t, 5, e)
		return nil
	})
}

func TestRange_IncomparableAcrossDocuments(t *testing.T) {
	tm, ctx := focusedContext(t, "abc")
	other := tm.CreateDocumentManager().Push("xyz")
	foreign := other.newRange(0, 1)

	edit(t, ctx, func(ec host.EditCookie) error {
		_, err := ctx.newRange(0, 1).CompareStart(ec, foreign, host.AnchorStart)
		assert.ErrorIs(t, err, host.ErrIncomparable)
		return nil
	})
}

func TestContext_SyncDeniedWhileLocked(t *testing.T) {
	_, ctx := focusedContext(t, "")

	var inner error
	edit(t, ctx, func(ec host.EditCookie) error {
		_, inner = ctx.RequestEditSession(testClient, host.EditSessionFunc(func(host.EditCookie) error {
			return nil
		}), host.Sync, host.ReadWrite)
		return nil
	})
	assert.ErrorIs(t, inner, host.ErrDenied)
}

func TestContext_AsyncRunsOnPump(t *testing.T) {
	_, ctx := focusedContext(t, "")

	ran := false
	g, err := ctx.RequestEditSession(testClient, host.EditSessionFunc(func(host.EditCookie) error {
		ran = true
		return nil
	}), host.Async, host.ReadWrite)
	require.NoError(t, err)
	assert.True(t, g.Async)
	assert.False(t, ran)
	assert.Equal(t, 1, ctx.Pending())

	ctx.Pump()
	assert.True(t, ran)
	assert.Equal(t, 0, ctx.Pending())

	h := ctx.History()
	require.Len(t, h, 1)
	assert.Equal(t, host.Async, h[0].Timing)
}

func TestContext_DenyEditSessions(t *testing.T) {
	tm, ctx := focusedContext(t, "")
	tm.DenyEditSessions = true

	_, err := ctx.RequestEditSession(testClient, host.EditSessionFunc(func(host.EditCookie) error {
		return nil
	}), host.Sync, host.ReadWrite)
	assert.True(t, errors.Is(err, host.ErrDenied))
	assert.Empty(t, ctx.History())
}

func TestContext_EndEditNotification(t *testing.T) {
	tm, ctx := focusedContext(t, "abc")
	rec := &endEditRecorder{}
	cookie, err := ctx.AdviseSink(host.SinkTextEdit, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, tm.OutstandingCookies())

	edit(t, ctx, func(ec host.EditCookie) error {
		_, err := ctx.InsertTextAtSelection(ec, 0, "de")
		return err
	})
	require.Equal(t, 1, rec.calls)
	assert.True(t, rec.selChanged[0])
	assert.Equal(t, [][2]int{{3, 5}}, rec.updates[0])
	assert.Equal(t, "abcde", ctx.Text())

	require.NoError(t, ctx.MoveSelection(0, 1))
	require.Equal(t, 2, rec.calls)
	assert.True(t, rec.selChanged[1])
	assert.Empty(t, rec.updates[1])

	require.NoError(t, ctx.UnadviseSink(cookie))
	assert.ErrorIs(t, ctx.UnadviseSink(cookie), host.ErrNoConnection)
	assert.Equal(t, 0, tm.OutstandingCookies())
}

func TestContext_InsertQueryOnly(t *testing.T) {
	_, ctx := focusedContext(t, "abc")
	require.NoError(t, ctx.MoveSelection(1, 2))

	edit(t, ctx, func(ec host.EditCookie) error {
		r, err := ctx.InsertTextAtSelection(ec, host.InsertQueryOnly|host.InsertNoDefaultComposition, "")
		require.NoError(t, err)
		s, e := r.(*Range).Offsets()
		assert.Equal(t, 1, s)
		assert.Equal(t, 2, e)
		return nil
	})
	assert.Equal(t, "abc", ctx.Text())
}

type terminationRecorder struct{ calls int }

func (r *terminationRecorder) OnCompositionTerminated(host.EditCookie, host.Composition) error {
	r.calls++
	return nil
}

func TestContext_CompositionLifecycle(t *testing.T) {
	_, ctx := focusedContext(t, "ab")
	sink := &terminationRecorder{}

	var comp host.Composition
	edit(t, ctx, func(ec host.EditCookie) error {
		var err error
		comp, err = ctx.StartComposition(ec, ctx.newRange(1, 1), sink)
		return err
	})
	_, _, ok := ctx.CompositionOffsets()
	assert.True(t, ok)

	edit(t, ctx, func(ec host.EditCookie) error {
		return comp.End(ec)
	})
	_, _, ok = ctx.CompositionOffsets()
	assert.False(t, ok)
	assert.Equal(t, 0, sink.calls)

	edit(t, ctx, func(ec host.EditCookie) error {
		var err error
		comp, err = ctx.StartComposition(ec, ctx.newRange(0, 1), sink)
		return err
	})
	require.NoError(t, ctx.TerminateComposition())
	assert.Equal(t, 1, sink.calls)
	_, err := comp.Range()
	assert.ErrorIs(t, err, host.ErrNoComposition)
	assert.ErrorIs(t, ctx.TerminateComposition(), host.ErrNoComposition)
}

func TestProperty_Values(t *testing.T) {
	_, ctx := focusedContext(t, "abcd")
	p := ctx.property(host.GUIDPropAttribute)

	edit(t, ctx, func(ec host.EditCookie) error {
		r := ctx.newRange(1, 3)
		require.NoError(t, p.SetValue(ec, r, host.GUIDAtom(5)))
		v, err := p.Value(ec, r)
		require.NoError(t, err)
		assert.Equal(t, host.GUIDAtom(5), v)

		_, err = p.Value(ec, ctx.newRange(0, 3))
		assert.ErrorIs(t, err, host.ErrNotFound)

		require.NoError(t, ctx.newRange(2, 2).SetText(ec, "zz"))
		return nil
	})
	assert.Equal(t, host.GUIDAtom(5), ctx.AttributeAt(1))
	assert.Nil(t, ctx.AttributeAt(2))
	assert.Equal(t, host.GUIDAtom(5), ctx.AttributeAt(4))

	edit(t, ctx, func(ec host.EditCookie) error {
		return p.Clear(ec, ctx.newRange(0, 6))
	})
	assert.Nil(t, ctx.AttributeAt(1))
}

func TestCompartment_EmptyUntilSet(t *testing.T) {
	tm := New()
	c, err := tm.CompartmentManager()
	require.NoError(t, err)
	comp, err := c.Compartment(host.GUIDCompartmentKeyboardOpenClose)
	require.NoError(t, err)

	_, err = comp.Value()
	assert.ErrorIs(t, err, host.ErrEmptyValue)

	require.NoError(t, comp.SetValue(testClient, 1))
	v, err := comp.Value()
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestCategoryManager_StableAtoms(t *testing.T) {
	tm := New()
	cm, err := tm.CategoryManager()
	require.NoError(t, err)

	a1, err := cm.RegisterGUID(host.GUIDPropAttribute)
	require.NoError(t, err)
	a2, err := cm.RegisterGUID(host.GUIDPropAttribute)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, 2, tm.Categories().Calls())

	tm.Fail.CategoryManager = true
	_, err = tm.CategoryManager()
	assert.Error(t, err)
}

func TestKeystrokeManager_PreservedKeys(t *testing.T) {
	tm := New()
	km := tm.Keystrokes()
	key := host.PreservedKey{VKey: host.VKF6, Modifiers: host.ModOnKeyUp}

	require.NoError(t, km.PreserveKey(testClient, host.GUIDPropAttribute, key, "Function 6"))
	assert.ErrorIs(t, km.PreserveKey(testClient, host.GUIDPropAttribute, key, "Function 6"), host.ErrAdviseLimit)

	desc, ok := km.Preserved(key)
	assert.True(t, ok)
	assert.Equal(t, "Function 6", desc)

	require.NoError(t, km.UnpreserveKey(host.GUIDPropAttribute, key))
	assert.ErrorIs(t, km.UnpreserveKey(host.GUIDPropAttribute, key), host.ErrNotFound)
	assert.Equal(t, 0, km.PreservedCount())
}

func TestThreadManager_FocusWithoutDocument(t *testing.T) {
	tm := New()
	_, err := tm.Focus()
	assert.ErrorIs(t, err, host.ErrNoFocus)
	assert.Nil(t, tm.FocusedContext())

	dm := tm.CreateDocumentManager()
	tm.SetFocus(dm)
	_, err = dm.Top()
	assert.ErrorIs(t, err, host.ErrNoContext)

	eaten, err := tm.SendKeyDown(host.VKA)
	require.NoError(t, err)
	assert.False(t, eaten)
}
