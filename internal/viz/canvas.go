package viz

import (
	"strings"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
//
// starting at U+2800.
const brailleBase = 0x2800

var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of braille cells with an overlay of single-cell marks.
// Dot coordinates run over (2·Width) × (4·Height) with y pointing down.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
	marks         map[[2]int]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		marks:  make(map[[2]int]rune),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the canvas size in dot coordinates.
func (c *Canvas) Dots() (int, int) { return 2 * c.Width, 4 * c.Height }

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

// Mark places r in the cell containing dot (x, y), hiding its dots.
func (c *Canvas) Mark(x, y int, r rune) {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return
	}
	c.marks[[2]int{y / 4, x / 2}] = r
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBase
		}
	}
	for k := range c.marks {
		delete(c.marks, k)
	}
}

// DrawLine draws a Bresenham line. With dash > 1 only every dash-th dot is
// set.
func (c *Canvas) DrawLine(x0, y0, x1, y1, dash int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for n := 0; ; n++ {
		if dash <= 1 || n%dash == 0 {
			c.Set(x0, y0)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Rows renders each cell row, marks included.
func (c *Canvas) Rows() []string {
	rows := make([]string, c.Height)
	for i, row := range c.Grid {
		line := make([]rune, len(row))
		copy(line, row)
		for j := range line {
			if r, ok := c.marks[[2]int{i, j}]; ok {
				line[j] = r
			}
		}
		rows[i] = string(line)
	}
	return rows
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Rows() {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
