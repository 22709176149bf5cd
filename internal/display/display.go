// Package display renders a GPU bit-plane snapshot with Ebiten, the
// display collaborator named in §4.5 ("dirty-flag-driven display
// re-render"). Grounded on IntuitionAmiga-IntuitionEngine's
// video_backend_ebiten.go: an ebiten.Game backed by a mutex-guarded pixel
// buffer that Draw blits and an outside goroutine feeds via UpdateFrame.
package display

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	gridSize = 32
)

// Window renders successive 32x32 monochrome frames at an integer pixel
// scale. The VM host calls SetFrame whenever the GPU's display buffer is
// dirty; Ebiten's own render loop calls Draw independently.
type Window struct {
	mu     sync.RWMutex
	frame  [gridSize]uint32
	scale  int
	image  *ebiten.Image
	dirty  bool
	onLit  uint32
	offLit uint32
}

// NewWindow builds a renderer at the given integer pixel scale (clamped to
// at least 1).
func NewWindow(scale int) *Window {
	if scale < 1 {
		scale = 1
	}
	return &Window{
		scale:  scale,
		image:  ebiten.NewImage(gridSize, gridSize),
		onLit:  0xFFFFFFFF,
		offLit: 0xFF000000,
	}
}

// SetFrame publishes a new display-buffer snapshot (§4.2's GPU.Snapshot).
func (w *Window) SetFrame(frame [gridSize]uint32) {
	w.mu.Lock()
	w.frame = frame
	w.dirty = true
	w.mu.Unlock()
}

func (w *Window) Update() error {
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	if w.dirty {
		pixels := make([]byte, gridSize*gridSize*4)
		for y := 0; y < gridSize; y++ {
			row := w.frame[y]
			for x := 0; x < gridSize; x++ {
				lit := row&(1<<uint(gridSize-1-x)) != 0
				off := (y*gridSize + x) * 4
				var c uint32
				if lit {
					c = w.onLit
				} else {
					c = w.offLit
				}
				pixels[off] = byte(c >> 24)
				pixels[off+1] = byte(c >> 16)
				pixels[off+2] = byte(c >> 8)
				pixels[off+3] = byte(c)
			}
		}
		w.image.WritePixels(pixels)
		w.dirty = false
	}
	w.mu.Unlock()

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(w.scale), float64(w.scale))
	screen.DrawImage(w.image, op)
}

func (w *Window) Layout(_, _ int) (int, int) {
	return gridSize * w.scale, gridSize * w.scale
}

// Run starts Ebiten's blocking render loop. Call from main after wiring a
// Window to a vm.Host's OnDirty.
func Run(w *Window, title string) error {
	ebiten.SetWindowSize(gridSize*w.scale, gridSize*w.scale)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizable(false)
	return ebiten.RunGame(w)
}
