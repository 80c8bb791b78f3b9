package composition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textservice/internal/host"
	"textservice/internal/host/memhost"
)

func setup(t *testing.T, text string) (*memhost.ThreadManager, *memhost.Context) {
	t.Helper()
	tm := memhost.New()
	dm := tm.CreateDocumentManager()
	ctx := dm.Push(text)
	tm.SetFocus(dm)
	return tm, ctx
}

func session(t *testing.T, ctx *memhost.Context, fn func(ec host.EditCookie) error) error {
	t.Helper()
	g, err := ctx.RequestEditSession(1, host.EditSessionFunc(fn), host.Sync, host.ReadWrite)
	require.NoError(t, err)
	return g.Err
}

func TestController_StartUsesProbeRange(t *testing.T) {
	_, ctx := setup(t, "hello")
	require.NoError(t, ctx.MoveSelection(2, 4))
	c := New(nil)

	var probeStart, probeEnd int
	require.NoError(t, session(t, ctx, func(ec host.EditCookie) error {
		probe, err := ctx.InsertTextAtSelection(ec, host.InsertQueryOnly, "")
		require.NoError(t, err)
		probeStart, probeEnd = probe.(*memhost.Range).Offsets()
		return c.Start(ec, ctx, c)
	}))

	assert.True(t, c.Active())
	s, e, ok := ctx.CompositionOffsets()
	require.True(t, ok)
	assert.Equal(t, probeStart, s)
	assert.Equal(t, probeEnd, e)

	ss, se := ctx.SelectionOffsets()
	assert.Equal(t, s, ss)
	assert.Equal(t, e, se)
	assert.Equal(t, "hello", ctx.Text())
}

func TestController_StartFailureLeavesNoComposition(t *testing.T) {
	tm, ctx := setup(t, "")
	tm.Fail.StartComposition = true
	c := New(nil)

	err := session(t, ctx, func(ec host.EditCookie) error {
		return c.Start(ec, ctx, c)
	})
	assert.Error(t, err)
	assert.False(t, c.Active())
	_, err = c.Range()
	assert.ErrorIs(t, err, host.ErrNoComposition)
}

func TestController_StartTwiceFails(t *testing.T) {
	_, ctx := setup(t, "")
	c := New(nil)

	require.NoError(t, session(t, ctx, func(ec host.EditCookie) error {
		return c.Start(ec, ctx, c)
	}))
	assert.Error(t, session(t, ctx, func(ec host.EditCookie) error {
		return c.Start(ec, ctx, c)
	}))
	assert.True(t, c.Active())
}

func TestController_TerminateLocally(t *testing.T) {
	_, ctx := setup(t, "ab")
	c := New(nil)

	require.NoError(t, session(t, ctx, func(ec host.EditCookie) error {
		if err := c.Start(ec, ctx, c); err != nil {
			return err
		}
		r, err := c.Range()
		require.NoError(t, err)
		return r.SetText(ec, "XY")
	}))

	require.NoError(t, session(t, ctx, func(ec host.EditCookie) error {
		text, err := c.Text(ec)
		require.NoError(t, err)
		assert.Equal(t, "XY", text)
		return c.Terminate(ec)
	}))

	assert.False(t, c.Active())
	_, _, ok := ctx.CompositionOffsets()
	assert.False(t, ok)
	assert.Equal(t, "abXY", ctx.Text())

	require.NoError(t, session(t, ctx, func(ec host.EditCookie) error {
		return c.Terminate(ec)
	}))
}

func TestController_TerminateClearsEvenWhenHostFails(t *testing.T) {
	_, ctx := setup(t, "")
	c := New(nil)

	require.NoError(t, session(t, ctx, func(ec host.EditCookie) error {
		return c.Start(ec, ctx, c)
	}))

	var stale host.EditCookie
	assert.Error(t, c.Terminate(stale))
	assert.False(t, c.Active())
}

func TestController_HostInitiatedTermination(t *testing.T) {
	_, ctx := setup(t, "")
	c := New(nil)

	require.NoError(t, session(t, ctx, func(ec host.EditCookie) error {
		return c.Start(ec, ctx, c)
	}))
	require.NoError(t, ctx.TerminateComposition())
	assert.False(t, c.Active())

	require.NoError(t, c.OnCompositionTerminated(0, nil))
	assert.False(t, c.Active())
}
