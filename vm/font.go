package vm

// font maps a text character code (§6.2) to a 5x5 glyph: row i, bit
// (glyphCols-1-col) set means that pixel is lit. Codes 0-25 are A-Z, 26-35
// are 0-9, and 36-42 are !?+-*.,
var font = [maxCharCode + 1][glyphRows]uint8{
	// A-Z
	0:  {0b01110, 0b10001, 0b11111, 0b10001, 0b10001}, // A
	1:  {0b11110, 0b10001, 0b11110, 0b10001, 0b11110}, // B
	2:  {0b01111, 0b10000, 0b10000, 0b10000, 0b01111}, // C
	3:  {0b11110, 0b10001, 0b10001, 0b10001, 0b11110}, // D
	4:  {0b11111, 0b10000, 0b11110, 0b10000, 0b11111}, // E
	5:  {0b11111, 0b10000, 0b11110, 0b10000, 0b10000}, // F
	6:  {0b01111, 0b10000, 0b10011, 0b10001, 0b01111}, // G
	7:  {0b10001, 0b10001, 0b11111, 0b10001, 0b10001}, // H
	8:  {0b01110, 0b00100, 0b00100, 0b00100, 0b01110}, // I
	9:  {0b00111, 0b00010, 0b00010, 0b10010, 0b01100}, // J
	10: {0b10001, 0b10010, 0b11100, 0b10010, 0b10001}, // K
	11: {0b10000, 0b10000, 0b10000, 0b10000, 0b11111}, // L
	12: {0b10001, 0b11011, 0b10101, 0b10001, 0b10001}, // M
	13: {0b10001, 0b11001, 0b10101, 0b10011, 0b10001}, // N
	14: {0b01110, 0b10001, 0b10001, 0b10001, 0b01110}, // O
	15: {0b11110, 0b10001, 0b11110, 0b10000, 0b10000}, // P
	16: {0b01110, 0b10001, 0b10101, 0b10010, 0b01101}, // Q
	17: {0b11110, 0b10001, 0b11110, 0b10010, 0b10001}, // R
	18: {0b01111, 0b10000, 0b01110, 0b00001, 0b11110}, // S
	19: {0b11111, 0b00100, 0b00100, 0b00100, 0b00100}, // T
	20: {0b10001, 0b10001, 0b10001, 0b10001, 0b01110}, // U
	21: {0b10001, 0b10001, 0b10001, 0b01010, 0b00100}, // V
	22: {0b10001, 0b10001, 0b10101, 0b11011, 0b10001}, // W
	23: {0b10001, 0b01010, 0b00100, 0b01010, 0b10001}, // X
	24: {0b10001, 0b01010, 0b00100, 0b00100, 0b00100}, // Y
	25: {0b11111, 0b00010, 0b00100, 0b01000, 0b11111}, // Z

	// 0-9
	26: {0b01110, 0b10011, 0b10101, 0b11001, 0b01110}, // 0
	27: {0b00100, 0b01100, 0b00100, 0b00100, 0b01110}, // 1
	28: {0b01110, 0b10001, 0b00010, 0b00100, 0b11111}, // 2
	29: {0b11110, 0b00001, 0b00110, 0b00001, 0b11110}, // 3
	30: {0b00010, 0b00110, 0b01010, 0b11111, 0b00010}, // 4
	31: {0b11111, 0b10000, 0b11110, 0b00001, 0b11110}, // 5
	32: {0b01110, 0b10000, 0b11110, 0b10001, 0b01110}, // 6
	33: {0b11111, 0b00001, 0b00010, 0b00100, 0b00100}, // 7
	34: {0b01110, 0b10001, 0b01110, 0b10001, 0b01110}, // 8
	35: {0b01110, 0b10001, 0b01111, 0b00001, 0b01110}, // 9

	// !?+-*.,
	36: {0b00100, 0b00100, 0b00100, 0b00000, 0b00100}, // !
	37: {0b01110, 0b10001, 0b00010, 0b00000, 0b00100}, // ?
	38: {0b00000, 0b00100, 0b01110, 0b00100, 0b00000}, // +
	39: {0b00000, 0b00000, 0b01110, 0b00000, 0b00000}, // -
	40: {0b00000, 0b10101, 0b01110, 0b10101, 0b00000}, // *
	41: {0b00000, 0b00000, 0b00000, 0b00000, 0b00100}, // .
	42: {0b00000, 0b00000, 0b00000, 0b00100, 0b01000}, // ,
}
