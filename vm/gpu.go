// Package vm's GPU unit: two 32x32 monochrome bit-plane buffers, a sprite
// table, a text table, and the rasterizers described in §4.2/§6.3/§6.4.
package vm

import "fmt"

const (
	gpuWidth  = 32
	gpuHeight = 32

	numSprites  = 32
	numTextSlot = 16384

	spriteCols = 5
	spriteRows = 3

	glyphCols = 5
	glyphRows = 5

	maxCharCode = 42
)

// GPU owns the two bit-plane buffers, the buffer selector, and the sprite
// and text tables (§3 "GPU state").
type GPU struct {
	// Buffers[b][y] is row y of buffer b: bit (31-x) is pixel x (§6.3).
	Buffers [2][gpuHeight]uint32

	// selector packs edit_buffer (bit 0) and display_buffer (bit 16) per
	// §6.4; all other bits are not meaningful and are not retained (§8's
	// selector round-trip invariant only ever reads these two bits back).
	editBuffer    uint32
	displayBuffer uint32

	Sprites [numSprites]uint16
	Text    [numTextSlot]uint8

	// Dirty is set whenever a draw instruction writes the edit buffer or
	// the selector is written, so the VM host knows to re-render for the
	// display collaborator (§4.5). It is not narrowed to writes that land
	// in the display buffer.
	Dirty bool
}

// WriteSelector implements MVR's GPU destination (§4.2 "Selector write
// semantics").
func (g *GPU) WriteSelector(w uint32) {
	g.editBuffer = w & 1
	g.displayBuffer = (w >> 16) & 1
	g.Dirty = true
}

// ReadSelector implements using GPU as an MVR source (§4.2, §8 "Selector
// round-trip").
func (g *GPU) ReadSelector() uint32 {
	return (g.displayBuffer << 16) | g.editBuffer
}

func (g *GPU) editIdx() int    { return int(g.editBuffer) }
func (g *GPU) displayIdx() int { return int(g.displayBuffer) }

// EditBuffer returns a pointer to the buffer draw ops write to.
func (g *GPU) EditBuffer() *[gpuHeight]uint32 { return &g.Buffers[g.editIdx()] }

// Snapshot returns a value copy of the display buffer for the display
// collaborator to render without racing the CPU thread (§5: the host reads
// GPU state only while the core is paused between ticks; this gives it
// something to hold onto during that window).
func (g *GPU) Snapshot() [gpuHeight]uint32 {
	return g.Buffers[g.displayIdx()]
}

func checkCoord(x int, max int) error {
	if x < 0 || x >= max {
		return fmt.Errorf("%w: coordinate %d out of [0,%d)", errOutOfRange, x, max)
	}
	return nil
}

func checkExtent(n int) error {
	if n < 1 || n > 32 {
		return fmt.Errorf("%w: extent %d out of [1,32]", errOutOfRange, n)
	}
	return nil
}

// ClearGrid implements CLRGRID(x,y,w,h) - clear every pixel in the
// rectangle [x,x+w) x [y,y+h).
func (g *GPU) ClearGrid(x, y, w, h int) error {
	if err := validateRect(x, y, w, h); err != nil {
		return err
	}
	g.rectOp(x, y, w, h, func(row *uint32, mask uint32) { *row &^= mask })
	return nil
}

// DrawGrid implements DRGRD(x,y,w,h) - set every pixel in the rectangle.
func (g *GPU) DrawGrid(x, y, w, h int) error {
	if err := validateRect(x, y, w, h); err != nil {
		return err
	}
	g.rectOp(x, y, w, h, func(row *uint32, mask uint32) { *row |= mask })
	return nil
}

func validateRect(x, y, w, h int) error {
	if err := checkCoord(x, gpuWidth); err != nil {
		return err
	}
	if err := checkCoord(y, gpuHeight); err != nil {
		return err
	}
	if err := checkExtent(w); err != nil {
		return err
	}
	if err := checkExtent(h); err != nil {
		return err
	}
	return nil
}

func (g *GPU) rectOp(x, y, w, h int, apply func(row *uint32, mask uint32)) {
	buf := g.EditBuffer()
	x1 := x + w
	if x1 > gpuWidth {
		x1 = gpuWidth
	}
	y1 := y + h
	if y1 > gpuHeight {
		y1 = gpuHeight
	}
	var mask uint32
	for col := x; col < x1; col++ {
		mask |= 1 << uint(gpuWidth-1-col)
	}
	for row := y; row < y1; row++ {
		apply(&buf[row], mask)
	}
	g.Dirty = true
}

// setPixel lights a single pixel in the edit buffer, clipping (not
// wrapping) coordinates outside the buffer - used by DrawLine, DrawSprite,
// and DrawText (§4.2 "Pixels outside the buffer are clipped, not wrapped").
func (g *GPU) setPixel(x, y int) {
	if x < 0 || x >= gpuWidth || y < 0 || y >= gpuHeight {
		return
	}
	buf := g.EditBuffer()
	buf[y] |= 1 << uint(gpuWidth-1-x)
	g.Dirty = true
}

// DrawLine implements DRLINE(x1,y1,x2,y2): a pixel-perfect Bresenham line,
// endpoints inclusive (§4.2).
func (g *GPU) DrawLine(x1, y1, x2, y2 int) error {
	if err := checkCoord(x1, gpuWidth); err != nil {
		return err
	}
	if err := checkCoord(y1, gpuHeight); err != nil {
		return err
	}
	if err := checkCoord(x2, gpuWidth); err != nil {
		return err
	}
	if err := checkCoord(y2, gpuHeight); err != nil {
		return err
	}

	dx := abs(x2 - x1)
	sx := sign(x2 - x1)
	dy := -abs(y2 - y1)
	sy := sign(y2 - y1)
	err := dx + dy

	x, y := x1, y1
	for {
		g.setPixel(x, y)
		if x == x2 && y == y2 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// LoadSprite implements LDSPR(id, data) (§4.2).
func (g *GPU) LoadSprite(id int, data uint16) error {
	if id < 0 || id >= numSprites {
		return fmt.Errorf("%w: sprite id %d", errOutOfRange, id)
	}
	g.Sprites[id] = data & 0x7FFF
	return nil
}

// DrawSprite implements DRSPR(id, x, y): ORs the 5-wide x 3-tall sprite
// pattern into the edit buffer at (x,y). Bit 14 is (row 0, col 0); bit 10
// is (row 0, col 4); bit 0 is (row 2, col 4) (§4.2).
func (g *GPU) DrawSprite(id, x, y int) error {
	if id < 0 || id >= numSprites {
		return fmt.Errorf("%w: sprite id %d", errOutOfRange, id)
	}
	if err := checkCoord(x, gpuWidth); err != nil {
		return err
	}
	if err := checkCoord(y, gpuHeight); err != nil {
		return err
	}

	pattern := g.Sprites[id]
	for row := 0; row < spriteRows; row++ {
		for col := 0; col < spriteCols; col++ {
			bit := (spriteRows-1-row)*spriteCols + (spriteCols - 1 - col)
			if pattern&(1<<uint(bit)) != 0 {
				g.setPixel(x+col, y+row)
			}
		}
	}
	return nil
}

// LoadText implements LDTXT(id, code) (§4.2).
func (g *GPU) LoadText(id int, code uint16) error {
	if id < 0 || id >= numTextSlot {
		return fmt.Errorf("%w: text id %d", errOutOfRange, id)
	}
	c := code & 0x3F
	if c > maxCharCode {
		return fmt.Errorf("%w: character code %d", errOutOfRange, c)
	}
	g.Text[id] = uint8(c)
	return nil
}

// DrawText implements DRTXT(id, x, y): renders the 5x5 glyph for the code
// stored in text slot id at (x,y), clipped not wrapped (§4.2).
func (g *GPU) DrawText(id, x, y int) error {
	if id < 0 || id >= numTextSlot {
		return fmt.Errorf("%w: text id %d", errOutOfRange, id)
	}
	if err := checkCoord(x, gpuWidth); err != nil {
		return err
	}
	if err := checkCoord(y, gpuHeight); err != nil {
		return err
	}

	glyph := font[g.Text[id]]
	for row := 0; row < glyphRows; row++ {
		for col := 0; col < glyphCols; col++ {
			if glyph[row]&(1<<uint(glyphCols-1-col)) != 0 {
				g.setPixel(x+col, y+row)
			}
		}
	}
	return nil
}

// ScrollBuffer implements SCRLBFR(offx, offy): shifts the edit buffer,
// discarding pixels shifted out and filling incoming pixels with 0 (§4.2).
// offx/offy are interpreted as signed 16-bit values.
func (g *GPU) ScrollBuffer(offx, offy int16) error {
	buf := g.EditBuffer()

	if offy != 0 {
		shifted := *buf
		for y := 0; y < gpuHeight; y++ {
			src := y - int(offy)
			if src < 0 || src >= gpuHeight {
				shifted[y] = 0
			} else {
				shifted[y] = buf[src]
			}
		}
		*buf = shifted
	}

	if offx != 0 {
		for y := 0; y < gpuHeight; y++ {
			buf[y] = shiftRow(buf[y], int(offx))
		}
	}

	g.Dirty = true
	return nil
}

// shiftRow shifts a 32-bit row by n columns, zero-filling vacated columns.
// Positive offx moves pixels toward increasing x; since bit (31-x) holds
// pixel x, that's a right shift of the bit pattern.
func shiftRow(row uint32, n int) uint32 {
	if n == 0 {
		return row
	}
	if n > 0 {
		if n >= gpuWidth {
			return 0
		}
		return row >> uint(n)
	}
	n = -n
	if n >= gpuWidth {
		return 0
	}
	return row << uint(n)
}
