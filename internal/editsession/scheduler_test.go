package editsession

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textservice/internal/host"
	"textservice/internal/host/memhost"
)

func newContext(t *testing.T) (*memhost.ThreadManager, *memhost.Context) {
	t.Helper()
	tm := memhost.New()
	dm := tm.CreateDocumentManager()
	ctx := dm.Push("abc")
	tm.SetFocus(dm)
	return tm, ctx
}

func TestScheduler_SyncInsideKeyDispatch(t *testing.T) {
	_, ctx := newContext(t)
	s := New(3, nil)

	leave := s.EnterKeyDispatch()
	ran := false
	out, err := s.Request(ctx, func(ec host.EditCookie) error {
		ran = true
		return nil
	}, host.Sync, host.ReadWrite)
	leave()

	require.NoError(t, err)
	assert.Equal(t, Granted, out)
	assert.True(t, ran)
	assert.False(t, s.InKeyDispatch())
}

func TestScheduler_SyncOutsideKeyDispatchIsDenied(t *testing.T) {
	_, ctx := newContext(t)
	s := New(3, nil)

	ran := false
	out, err := s.Request(ctx, func(ec host.EditCookie) error {
		ran = true
		return nil
	}, host.Sync, host.ReadWrite)

	require.NoError(t, err)
	assert.Equal(t, Denied, out)
	assert.False(t, ran)
	assert.Empty(t, ctx.History())
}

func TestScheduler_AsyncRunsLater(t *testing.T) {
	_, ctx := newContext(t)
	s := New(3, nil)

	ran := false
	out, err := s.Request(ctx, func(ec host.EditCookie) error {
		ran = true
		return nil
	}, host.Async, host.ReadWrite)
	require.NoError(t, err)
	assert.Equal(t, Granted, out)
	assert.False(t, ran)

	ctx.Pump()
	assert.True(t, ran)
}

func TestScheduler_HostDenialIsNotRetried(t *testing.T) {
	tm, ctx := newContext(t)
	tm.DenyEditSessions = true
	s := New(3, nil)

	out, err := s.Request(ctx, func(ec host.EditCookie) error { return nil }, host.Async, host.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, Denied, out)

	tm.DenyEditSessions = false
	ctx.Pump()
	assert.Empty(t, ctx.History())
}

func TestScheduler_WorkErrorIsReturned(t *testing.T) {
	_, ctx := newContext(t)
	s := New(3, nil)
	boom := errors.New("boom")

	leave := s.EnterKeyDispatch()
	defer leave()
	out, err := s.Request(ctx, func(ec host.EditCookie) error { return boom }, host.Sync, host.ReadOnly)
	assert.Equal(t, Granted, out)
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_NilContext(t *testing.T) {
	s := New(3, nil)
	out, err := s.Request(nil, func(ec host.EditCookie) error { return nil }, host.Async, host.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, Denied, out)
	assert.Equal(t, "denied", out.String())
}
