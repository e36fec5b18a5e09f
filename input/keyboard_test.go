package input

import (
	"context"
	"testing"
	"time"

	"github.com/mobile-next/mobilecv/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizer_KeyDownUp(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSynthesizer(sink, newFakeClock())
	ctx := context.Background()

	require.NoError(t, s.KeyDown(ctx, "CTRL"))
	require.NoError(t, s.KeyDown(ctx, "CTRL"))
	require.NoError(t, s.KeyDown(ctx, "c"))
	assert.Equal(t, []string{"CTRL", "c"}, s.HeldKeys())

	require.NoError(t, s.KeyUp(ctx, "c"))
	require.NoError(t, s.KeyUp(ctx, "CTRL"))
	require.NoError(t, s.KeyUp(ctx, "CTRL"))
	assert.Empty(t, s.HeldKeys())

	require.Len(t, sink.keys, 4)
	assert.Equal(t, KeyEvent{Action: control.ActionDown, Key: mustKey(t, "KEY_CTRL_LEFT"), Meta: 0}, sink.keys[0])
	assert.Equal(t, KeyEvent{Action: control.ActionDown, Key: mustKey(t, "c"), Meta: control.MetaCtrlOn}, sink.keys[1])
	assert.Equal(t, KeyEvent{Action: control.ActionUp, Key: mustKey(t, "c"), Meta: control.MetaCtrlOn}, sink.keys[2])
	assert.Equal(t, KeyEvent{Action: control.ActionUp, Key: mustKey(t, "KEY_CTRL_LEFT"), Meta: control.MetaCtrlOn}, sink.keys[3])
}

func TestSynthesizer_UnsupportedKey(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSynthesizer(sink, newFakeClock())

	assert.ErrorIs(t, s.KeyDown(context.Background(), "KEY_NOPE"), control.ErrUnsupportedKey)
	assert.False(t, s.CheckSupport("KEY_NOPE"))
	assert.True(t, s.CheckSupport("ALT"))
	assert.Empty(t, sink.keys)
}

func TestSynthesizer_Type(t *testing.T) {
	sink := &recordingSink{}
	clock := newFakeClock()
	s := newTestSynthesizer(sink, clock)

	require.NoError(t, s.Type(context.Background(), "aB!"))

	type step struct {
		action control.Action
		name   string
		meta   int32
	}
	want := []step{
		{control.ActionDown, "KEY_A", 0},
		{control.ActionUp, "KEY_A", 0},
		{control.ActionDown, "KEY_SHIFT_LEFT", 0},
		{control.ActionDown, "KEY_B", control.MetaShiftOn},
		{control.ActionUp, "KEY_B", control.MetaShiftOn},
		{control.ActionUp, "KEY_SHIFT_LEFT", control.MetaShiftOn},
		{control.ActionDown, "KEY_SHIFT_LEFT", 0},
		{control.ActionDown, "KEY_1", control.MetaShiftOn},
		{control.ActionUp, "KEY_1", control.MetaShiftOn},
		{control.ActionUp, "KEY_SHIFT_LEFT", control.MetaShiftOn},
	}

	require.Len(t, sink.keys, len(want))
	for i, w := range want {
		assert.Equal(t, w.action, sink.keys[i].Action, "event %d", i)
		assert.Equal(t, w.name, sink.keys[i].Key.Name, "event %d", i)
		assert.Equal(t, w.meta, sink.keys[i].Meta, "event %d", i)
	}
	assert.Empty(t, s.HeldKeys())

	// 7 cps with 25% variance
	require.Len(t, clock.slept, 3)
	for _, d := range clock.slept {
		assert.GreaterOrEqual(t, d, 107*time.Millisecond)
		assert.LessOrEqual(t, d, 179*time.Millisecond)
	}
}

func TestSynthesizer_TypeRejectsUnsupported(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSynthesizer(sink, newFakeClock())

	err := s.Type(context.Background(), "a€")
	assert.ErrorIs(t, err, control.ErrUnsupportedKey)
	assert.Len(t, sink.keys, 2)
}

func TestSynthesizer_Press(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSynthesizer(sink, newFakeClock())

	require.NoError(t, s.Press(context.Background(), "enter"))
	require.Len(t, sink.keys, 2)
	assert.Equal(t, int32(66), sink.keys[0].Key.Android)
	assert.Empty(t, s.HeldKeys())
}

func mustKey(t *testing.T, name string) control.KeyCode {
	t.Helper()
	k, err := control.LookupKey(name)
	require.NoError(t, err)
	return k
}
