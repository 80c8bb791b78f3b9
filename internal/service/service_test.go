package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textservice/internal/attribute"
	"textservice/internal/host"
	"textservice/internal/host/memhost"
)

const (
	vkB = host.VKA + 1
	vkC = host.VKA + 2
	vkQ = host.VKA + 16
	vkX = host.VKA + 23
	vkY = host.VKA + 24
)

type harness struct {
	tm  *memhost.ThreadManager
	dm  *memhost.DocumentManager
	ctx *memhost.Context
	svc *Service
}

func newHarness(t *testing.T, text string, opts Options) *harness {
	t.Helper()
	tm := memhost.New()
	dm := tm.CreateDocumentManager()
	ctx := dm.Push(text)
	tm.SetFocus(dm)

	svc := New(opts)
	_, err := tm.Activate(svc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Deactivate() })

	tm.Compartments().Set(host.GUIDCompartmentKeyboardOpenClose, 1)
	return &harness{tm: tm, dm: dm, ctx: ctx, svc: svc}
}

func (h *harness) keys(t *testing.T, vks ...host.VirtualKey) {
	t.Helper()
	for _, vk := range vks {
		eaten, err := h.tm.SendKeyDown(vk)
		require.NoError(t, err)
		require.True(t, eaten, "key %#x not eaten", uint32(vk))
	}
}

func (h *harness) atom(t *testing.T, id attribute.Identity) host.GUIDAtom {
	t.Helper()
	a, ok := h.tm.Categories().Atom(id.GUID())
	require.True(t, ok)
	return a
}

func (h *harness) composition(t *testing.T) (int, int) {
	t.Helper()
	s, e, ok := h.ctx.CompositionOffsets()
	require.True(t, ok, "no composition")
	return s, e
}

func TestActivate_SubscriptionsAreSymmetric(t *testing.T) {
	tm := memhost.New()
	dm := tm.CreateDocumentManager()
	dm.Push("")
	tm.SetFocus(dm)
	before := tm.OutstandingCookies()

	svc := New(Options{})
	for i := 0; i < 3; i++ {
		cid, err := tm.Activate(svc)
		require.NoError(t, err)
		assert.Equal(t, before+2, tm.OutstandingCookies())
		assert.True(t, tm.Keystrokes().Advised(cid))
		assert.Equal(t, 3, tm.Keystrokes().PreservedCount())
		assert.Len(t, tm.LangBar().Items(), 1)

		require.NoError(t, svc.Deactivate())
		assert.Equal(t, before, tm.OutstandingCookies())
		assert.False(t, tm.Keystrokes().Advised(cid))
		assert.Equal(t, 0, tm.Keystrokes().PreservedCount())
		assert.Empty(t, tm.LangBar().Items())
		assert.Equal(t, host.ClientIDNull, svc.ClientID())

		require.NoError(t, svc.Deactivate())
		assert.Equal(t, before, tm.OutstandingCookies())
	}
}

func TestActivate_ThreadEventSinkFailureRollsBack(t *testing.T) {
	tm := memhost.New()
	dm := tm.CreateDocumentManager()
	dm.Push("")
	tm.SetFocus(dm)
	tm.Fail.AdviseThreadMgrEvent = true

	svc := New(Options{})
	cid, err := tm.Activate(svc)
	require.Error(t, err)
	assert.ErrorIs(t, err, host.ErrCannotConnect)

	assert.Equal(t, 0, tm.OutstandingCookies())
	assert.False(t, tm.Keystrokes().Advised(cid))
	assert.Empty(t, tm.LangBar().Items())
	assert.NoError(t, svc.Deactivate())
}

func TestActivate_KeySinkFailureRollsBack(t *testing.T) {
	tm := memhost.New()
	dm := tm.CreateDocumentManager()
	dm.Push("")
	tm.SetFocus(dm)
	tm.Fail.AdviseKeyEventSink = true

	svc := New(Options{})
	_, err := tm.Activate(svc)
	require.Error(t, err)

	assert.Equal(t, 0, tm.OutstandingCookies())
	assert.Empty(t, tm.LangBar().Items())
	assert.Equal(t, 0, tm.Keystrokes().PreservedCount())
	assert.Nil(t, svc.LangBarItem())
}

func TestActivate_BestEffortSteps(t *testing.T) {
	tm := memhost.New()
	dm := tm.CreateDocumentManager()
	dm.Push("")
	tm.SetFocus(dm)
	tm.Fail.AdviseTextEditSink = true
	tm.Fail.AddLangBarItem = true
	tm.Fail.PreserveKey = true
	tm.Fail.CategoryManager = true

	svc := New(Options{})
	cid, err := tm.Activate(svc)
	require.NoError(t, err)

	assert.Equal(t, 1, tm.OutstandingCookies())
	assert.True(t, tm.Keystrokes().Advised(cid))
	assert.Nil(t, svc.LangBarItem())
	assert.Equal(t, 0, tm.Keystrokes().PreservedCount())

	require.NoError(t, svc.Deactivate())
	assert.Equal(t, 0, tm.OutstandingCookies())
}

func TestOnSetFocus_RebindsTextEditSink(t *testing.T) {
	tm := memhost.New()
	svc := New(Options{})
	_, err := tm.Activate(svc)
	require.NoError(t, err)
	assert.Equal(t, 1, tm.OutstandingCookies())

	first := tm.CreateDocumentManager()
	first.Push("one")
	tm.SetFocus(first)
	assert.Equal(t, 2, tm.OutstandingCookies())

	second := tm.CreateDocumentManager()
	second.Push("two")
	tm.SetFocus(second)
	assert.Equal(t, 2, tm.OutstandingCookies())

	tm.SetFocus(nil)
	assert.Equal(t, 1, tm.OutstandingCookies())

	require.NoError(t, svc.Deactivate())
	assert.Equal(t, 0, tm.OutstandingCookies())
}

func TestEatingPolicy(t *testing.T) {
	const unset = -1
	tests := []struct {
		name         string
		disabled     int32
		emptyContext int32
		open         int32
		vk           host.VirtualKey
		want         bool
	}{
		{"enabled and open", unset, unset, 1, host.VKA, true},
		{"last letter", unset, unset, 1, host.VKZ, true},
		{"disabled", 1, unset, 1, host.VKA, false},
		{"disabled and closed", 1, unset, 0, host.VKA, false},
		{"closed", unset, unset, 0, host.VKA, false},
		{"toggle never set", unset, unset, unset, host.VKA, false},
		{"empty context", unset, 1, 1, host.VKA, false},
		{"disabled flag decides first", 0, 1, 1, host.VKA, true},
		{"digit", unset, unset, 1, 0x31, false},
		{"arrow without composition", unset, unset, 1, host.VKLeft, false},
		{"enter without composition", unset, unset, 1, host.VKReturn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "", Options{})
			h.tm.Compartments().Get(host.GUIDCompartmentKeyboardOpenClose).Clear()

			set := func(cm *memhost.CompartmentManager, id uuid.UUID, v int32) {
				if v != unset {
					cm.Set(id, v)
				}
			}
			set(h.ctx.Compartments(), host.GUIDCompartmentKeyboardDisabled, tt.disabled)
			set(h.ctx.Compartments(), host.GUIDCompartmentEmptyContext, tt.emptyContext)
			set(h.tm.Compartments(), host.GUIDCompartmentKeyboardOpenClose, tt.open)

			down, err := h.svc.OnTestKeyDown(h.ctx, tt.vk, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, down)

			up, err := h.svc.OnTestKeyUp(h.ctx, tt.vk, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, up)
		})
	}
}

func TestEatingPolicy_NoFocusIsDisabled(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.tm.SetFocus(nil)

	eaten, err := h.svc.OnTestKeyDown(nil, host.VKA, 0)
	require.NoError(t, err)
	assert.False(t, eaten)

	empty := h.tm.CreateDocumentManager()
	h.tm.SetFocus(empty)
	eaten, err = h.svc.OnTestKeyDown(nil, host.VKA, 0)
	require.NoError(t, err)
	assert.False(t, eaten)
}

func TestKeyDown_LetterStartsCompositionWithInputStyle(t *testing.T) {
	h := newHarness(t, "xy", Options{})

	h.keys(t, host.VKA)
	assert.Equal(t, "xyA", h.ctx.Text())
	assert.True(t, h.svc.Composing())
	s, e := h.composition(t)
	assert.Equal(t, 2, s)
	assert.Equal(t, 3, e)

	ss, se := h.ctx.SelectionOffsets()
	assert.Equal(t, 3, ss)
	assert.Equal(t, 3, se)

	h.keys(t, vkB)
	assert.Equal(t, "xyAB", h.ctx.Text())
	_, e = h.composition(t)
	assert.Equal(t, 4, e)

	input := h.atom(t, attribute.Input)
	assert.Nil(t, h.ctx.AttributeAt(1))
	assert.Equal(t, input, h.ctx.AttributeAt(2))
	assert.Equal(t, input, h.ctx.AttributeAt(3))
}

func TestKeyDown_ReplacesSelectedText(t *testing.T) {
	h := newHarness(t, "hello", Options{})
	require.NoError(t, h.ctx.MoveSelection(1, 4))

	h.keys(t, vkQ)
	assert.Equal(t, "hQo", h.ctx.Text())
	s, e := h.composition(t)
	assert.Equal(t, 1, s)
	assert.Equal(t, 2, e)
}

func TestKeyDown_SelectionOutsideCompositionIsIgnored(t *testing.T) {
	h := newHarness(t, "abc", Options{})
	h.keys(t, vkX)
	require.Equal(t, "abcX", h.ctx.Text())

	require.NoError(t, h.ctx.MoveSelection(0, 0))
	require.Equal(t, 1, h.ctx.Pending())

	h.keys(t, vkY)
	assert.Equal(t, "abcX", h.ctx.Text())
	assert.False(t, h.svc.Composing())
}

func TestKeyDown_EnterEndsComposition(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.keys(t, host.VKA, vkB)

	h.keys(t, host.VKReturn)
	assert.False(t, h.svc.Composing())
	assert.Equal(t, "AB", h.ctx.Text())
	_, _, ok := h.ctx.CompositionOffsets()
	assert.False(t, ok)
	assert.Nil(t, h.ctx.AttributeAt(0))
	assert.Nil(t, h.ctx.AttributeAt(1))

	eaten, err := h.tm.SendKeyDown(host.VKReturn)
	require.NoError(t, err)
	assert.False(t, eaten)
}

func TestKeyUp_ReportsWithoutCommitting(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.keys(t, host.VKA)

	eaten, err := h.tm.SendKeyUp(host.VKReturn)
	require.NoError(t, err)
	assert.True(t, eaten)
	assert.True(t, h.svc.Composing())

	eaten, err = h.tm.SendKeyUp(vkC)
	require.NoError(t, err)
	assert.True(t, eaten)
	assert.Equal(t, "A", h.ctx.Text())
}

func TestArrowKeys_StayInsideComposition(t *testing.T) {
	h := newHarness(t, "xx", Options{})
	h.keys(t, host.VKA, vkB, vkC)
	cs, ce := h.composition(t)
	require.Equal(t, 2, cs)
	require.Equal(t, 5, ce)

	for i := 0; i < 8; i++ {
		h.keys(t, host.VKLeft)
		s, e := h.ctx.SelectionOffsets()
		assert.Equal(t, s, e)
		assert.GreaterOrEqual(t, s, cs)
		assert.LessOrEqual(t, e, ce)
	}
	s, _ := h.ctx.SelectionOffsets()
	assert.Equal(t, 2, s)

	for i := 0; i < 8; i++ {
		h.keys(t, host.VKRight)
		s, e := h.ctx.SelectionOffsets()
		assert.GreaterOrEqual(t, s, cs)
		assert.LessOrEqual(t, e, ce)
	}
	_, e := h.ctx.SelectionOffsets()
	assert.Equal(t, 5, e)

	assert.Equal(t, "xxABC", h.ctx.Text())
	assert.True(t, h.svc.Composing())
	assert.Equal(t, 0, h.ctx.Pending())
}

func TestArrowKeys_TypingAtMovedCaret(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.keys(t, host.VKA, vkC, host.VKLeft, vkB)

	assert.Equal(t, "ABC", h.ctx.Text())
	s, e := h.composition(t)
	assert.Equal(t, 0, s)
	assert.Equal(t, 3, e)
}

func TestSpace_AppliesConvertedIdempotently(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.keys(t, host.VKA, vkB, host.VKSpace)

	converted := h.atom(t, attribute.Converted)
	once := []any{h.ctx.AttributeAt(0), h.ctx.AttributeAt(1)}
	assert.Equal(t, []any{converted, converted}, once)

	h.keys(t, host.VKSpace)
	assert.Equal(t, once, []any{h.ctx.AttributeAt(0), h.ctx.AttributeAt(1)})
	assert.Equal(t, "AB", h.ctx.Text())

	s, e := h.ctx.SelectionOffsets()
	assert.Equal(t, 2, s)
	assert.Equal(t, 2, e)
}

func TestSelfHeal_TerminatesOnceInFreshSession(t *testing.T) {
	h := newHarness(t, "hello ", Options{})
	h.keys(t, host.VKA, vkB)
	asyncBefore := countAsync(h.ctx.History())

	require.NoError(t, h.ctx.MoveSelection(0, 0))
	assert.True(t, h.svc.Composing(), "termination must not run inline")
	assert.Equal(t, 1, h.ctx.Pending())

	require.NoError(t, h.ctx.MoveSelection(1, 1))
	assert.Equal(t, 1, h.ctx.Pending())

	h.tm.Pump()
	assert.False(t, h.svc.Composing())
	assert.Equal(t, asyncBefore+1, countAsync(h.ctx.History()))
	assert.Equal(t, "hello AB", h.ctx.Text())

	require.NoError(t, h.ctx.MoveSelection(3, 3))
	assert.Equal(t, 0, h.ctx.Pending())
}

func TestSelfHeal_SelectionInsideCompositionKeepsIt(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.keys(t, host.VKA, vkB, vkC)

	require.NoError(t, h.ctx.MoveSelection(1, 2))
	assert.Equal(t, 0, h.ctx.Pending())
	assert.True(t, h.svc.Composing())
}

func TestHostTermination(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.keys(t, host.VKA)

	require.NoError(t, h.ctx.TerminateComposition())
	assert.False(t, h.svc.Composing())

	require.NoError(t, h.ctx.MoveSelection(0, 0))
	assert.Equal(t, 0, h.ctx.Pending())

	h.keys(t, vkB)
	assert.Equal(t, "BA", h.ctx.Text())
	assert.True(t, h.svc.Composing())
}

func TestSelfHeal_QueuedTerminationSparesNewComposition(t *testing.T) {
	h := newHarness(t, "hello ", Options{})
	h.keys(t, host.VKA, vkB)

	require.NoError(t, h.ctx.MoveSelection(0, 0))
	require.Equal(t, 1, h.ctx.Pending())

	require.NoError(t, h.ctx.TerminateComposition())
	assert.False(t, h.svc.Composing())

	h.keys(t, vkC)
	assert.Equal(t, 0, h.ctx.Pending())
	assert.Equal(t, "Chello AB", h.ctx.Text())
	assert.True(t, h.svc.Composing())
	start, end := h.composition(t)
	assert.Equal(t, [2]int{0, 1}, [2]int{start, end})
	s, e := h.ctx.SelectionOffsets()
	assert.Equal(t, [2]int{1, 1}, [2]int{s, e})

	require.NoError(t, h.ctx.MoveSelection(5, 5))
	assert.Equal(t, 1, h.ctx.Pending(), "a new termination can be queued")
	h.tm.Pump()
	assert.False(t, h.svc.Composing())
}

func TestSelfHeal_QueuedTerminationIgnoredAfterReactivation(t *testing.T) {
	h := newHarness(t, "hello ", Options{})
	h.keys(t, host.VKA, vkB)

	require.NoError(t, h.ctx.MoveSelection(0, 0))
	require.Equal(t, 1, h.ctx.Pending())

	require.NoError(t, h.svc.Deactivate())
	_, err := h.tm.Activate(h.svc)
	require.NoError(t, err)

	h.keys(t, vkC)
	assert.Equal(t, 0, h.ctx.Pending())
	assert.Equal(t, "Chello AB", h.ctx.Text())
	assert.True(t, h.svc.Composing())
}

func TestSelfHeal_EnterWhileQueuedAllowsLaterRequests(t *testing.T) {
	h := newHarness(t, "hello ", Options{})
	h.keys(t, host.VKA, vkB)

	require.NoError(t, h.ctx.MoveSelection(0, 0))
	require.Equal(t, 1, h.ctx.Pending())
	require.NoError(t, h.ctx.MoveSelection(8, 8))

	h.keys(t, host.VKReturn)
	assert.False(t, h.svc.Composing())
	assert.Equal(t, 0, h.ctx.Pending())

	h.keys(t, vkC)
	require.True(t, h.svc.Composing())
	require.NoError(t, h.ctx.MoveSelection(0, 0))
	assert.Equal(t, 1, h.ctx.Pending())
	h.tm.Pump()
	assert.False(t, h.svc.Composing())
	assert.Equal(t, "hello ABC", h.ctx.Text())
}

func TestSelfHeal_SelectionReturnedBeforeSessionRuns(t *testing.T) {
	h := newHarness(t, "hello ", Options{})
	h.keys(t, host.VKA, vkB)

	require.NoError(t, h.ctx.MoveSelection(0, 0))
	require.Equal(t, 1, h.ctx.Pending())

	// Host edits do not pump, so the caret is back inside when the session runs.
	require.NoError(t, h.ctx.MoveSelection(7, 7))
	assert.Equal(t, 1, h.ctx.Pending())
	h.tm.Pump()
	assert.True(t, h.svc.Composing())
}

func TestKeyDown_DeniedSessionIsNoop(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.tm.DenyEditSessions = true

	eaten, err := h.tm.SendKeyDown(host.VKA)
	require.NoError(t, err)
	assert.True(t, eaten)
	assert.Equal(t, "", h.ctx.Text())
	assert.False(t, h.svc.Composing())
}

func TestPreservedKeys(t *testing.T) {
	h := newHarness(t, "", Options{})
	require.True(t, h.svc.KeyboardOpen())

	eaten, err := h.tm.SendPreservedKey(host.PreservedKey{VKey: host.VKOEM3, Modifiers: host.ModAlt})
	require.NoError(t, err)
	assert.True(t, eaten)
	assert.False(t, h.svc.KeyboardOpen())

	eaten, err = h.tm.SendPreservedKey(host.PreservedKey{VKey: host.VKKanji, Modifiers: host.ModIgnoreAllModifier})
	require.NoError(t, err)
	assert.True(t, eaten)
	assert.True(t, h.svc.KeyboardOpen())

	eaten, err = h.tm.SendPreservedKey(host.PreservedKey{VKey: host.VKF6, Modifiers: host.ModOnKeyUp})
	require.NoError(t, err)
	assert.False(t, eaten)
	assert.True(t, h.svc.KeyboardOpen())

	desc, ok := h.tm.Keystrokes().Preserved(host.PreservedKey{VKey: host.VKF6, Modifiers: host.ModOnKeyUp})
	require.True(t, ok)
	assert.Equal(t, "Function 6", desc)
}

func TestPreservedKeys_CustomToggle(t *testing.T) {
	custom := host.PreservedKey{VKey: host.VKSpace, Modifiers: host.ModControl}
	h := newHarness(t, "", Options{ToggleKey: custom})

	desc, ok := h.tm.Keystrokes().Preserved(custom)
	require.True(t, ok)
	assert.Equal(t, "OnOff", desc)
	_, ok = h.tm.Keystrokes().Preserved(host.PreservedKey{VKey: host.VKOEM3, Modifiers: host.ModAlt})
	assert.False(t, ok)
}

func TestLangBarButton(t *testing.T) {
	h := newHarness(t, "", Options{})
	items := h.tm.LangBar().Items()
	require.Len(t, items, 1)
	item := h.svc.LangBarItem()
	require.NotNil(t, item)

	info := item.Info()
	assert.Equal(t, CLSID, info.ServiceID)
	assert.Equal(t, GUIDLangBarItemButton, info.ItemID)
	assert.Equal(t, "Sample Text Service", info.Description)
	assert.Equal(t, host.LangBarStyleButtonMenu, info.Style)
	assert.ErrorIs(t, item.Show(true), host.ErrNotImpl)

	_, err := item.AdviseSink(host.SinkLangBarItem, &memhost.Menu{})
	assert.ErrorIs(t, err, host.ErrAdviseLimit)
	assert.ErrorIs(t, item.UnadviseSink(1), host.ErrNoConnection)

	menu := &memhost.Menu{}
	require.NoError(t, item.InitMenu(menu))
	require.Len(t, menu.Items, 3)
	assert.Equal(t, MenuItemOpenClose, menu.Items[2].ID)
	assert.Equal(t, host.MenuChecked, menu.Items[2].Flags)
	assert.Equal(t, "Open", menu.Items[2].Text)

	require.NoError(t, item.OnMenuSelect(MenuItemOpenClose))
	assert.False(t, h.svc.KeyboardOpen())
	assert.Equal(t, []uint32{0}, h.tm.LangBar().Updates(item))

	menu = &memhost.Menu{}
	require.NoError(t, item.InitMenu(menu))
	assert.Equal(t, uint32(0), menu.Items[2].Flags)

	h.ctx.Compartments().Set(host.GUIDCompartmentKeyboardDisabled, 1)
	menu = &memhost.Menu{}
	require.NoError(t, item.InitMenu(menu))
	assert.Equal(t, host.MenuGrayed, menu.Items[2].Flags)

	require.NoError(t, item.OnMenuSelect(MenuItem0))
	assert.False(t, h.svc.KeyboardOpen())
}

func TestTextUpdateHook(t *testing.T) {
	var calls, ranges int
	h := newHarness(t, "", Options{
		OnTextUpdated: func(ctx host.Context, ec host.EditCookie, updates []host.Range) {
			calls++
			ranges += len(updates)
		},
	})

	h.keys(t, host.VKA, vkB)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, ranges)

	h.keys(t, host.VKSpace)
	assert.Equal(t, 2, calls)
}

func TestDeactivate_WhileComposing(t *testing.T) {
	h := newHarness(t, "", Options{})
	h.keys(t, host.VKA)
	require.True(t, h.svc.Composing())

	require.NoError(t, h.svc.Deactivate())
	assert.False(t, h.svc.Composing())
	assert.Equal(t, 0, h.tm.OutstandingCookies())

	_, err := h.tm.Activate(h.svc)
	require.NoError(t, err)
	h.tm.Compartments().Set(host.GUIDCompartmentKeyboardOpenClose, 1)
	h.keys(t, vkB)
	assert.True(t, h.svc.Composing())
}

func countAsync(history []memhost.SessionRecord) int {
	n := 0
	for _, r := range history {
		if r.Timing == host.Async {
			n++
		}
	}
	return n
}
