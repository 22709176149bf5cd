package display

import "testing"

func assert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestNewWindowClampsScale(t *testing.T) {
	w := NewWindow(0)
	width, height := w.Layout(0, 0)
	assert(t, width == gridSize, "expected width %d, got %d", gridSize, width)
	assert(t, height == gridSize, "expected height %d, got %d", gridSize, height)
}

func TestLayoutScalesBothDimensions(t *testing.T) {
	w := NewWindow(4)
	width, height := w.Layout(0, 0)
	assert(t, width == gridSize*4, "expected width %d, got %d", gridSize*4, width)
	assert(t, height == gridSize*4, "expected height %d, got %d", gridSize*4, height)
}

func TestSetFrameMarksDirty(t *testing.T) {
	w := NewWindow(1)
	assert(t, !w.dirty, "expected a fresh window to start clean")
	var frame [gridSize]uint32
	frame[0] = 0xFFFFFFFF
	w.SetFrame(frame)
	assert(t, w.dirty, "expected SetFrame to mark the window dirty")
	assert(t, w.frame == frame, "expected SetFrame to store the published frame")
}
