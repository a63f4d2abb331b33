package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/dynamo"
)

// Measure maps a point to the ordinate of a branch diagram.
type Measure func(p dynamo.Point) float64

func NormMeasure(p dynamo.Point) float64 { return p.Norm() }

// ComponentMeasure plots u[i]; out of range indices fall back to the norm.
func ComponentMeasure(i int) Measure {
	return func(p dynamo.Point) float64 {
		u := p.X.U()
		if i < 0 || i >= len(u) {
			return p.Norm()
		}
		return u[i]
	}
}

var kindMarks = map[bifurcation.Kind]rune{
	bifurcation.Fold:         'F',
	bifurcation.BranchPoint:  'B',
	bifurcation.Hopf:         'H',
	bifurcation.Unclassified: '?',
}

// KindMark is the single-letter marker drawn for a bifurcation kind.
func KindMark(k bifurcation.Kind) rune {
	if r, ok := kindMarks[k]; ok {
		return r
	}
	return '?'
}

type marker struct {
	lambda, value float64
	mark          rune
}

// Diagram draws branches in the (λ, measure) plane. Stable stretches are
// solid, unstable ones dotted.
type Diagram struct {
	Width, Height int
	measure       Measure
	branches      [][]dynamo.Point
	markers       []marker
}

func NewDiagram(width, height int, m Measure) *Diagram {
	if m == nil {
		m = NormMeasure
	}
	return &Diagram{Width: width, Height: height, measure: m}
}

// DiagramFromTree collects every branch and bifurcation of a tree.
func DiagramFromTree(tree *continuation.Tree, width, height int, m Measure) *Diagram {
	d := NewDiagram(width, height, m)
	for _, b := range tree.Branches {
		d.AddBranch(b.Points)
		for _, r := range b.Bifurcations {
			d.AddBifurcation(r)
		}
	}
	return d
}

func (d *Diagram) AddBranch(points []dynamo.Point) {
	if len(points) > 0 {
		d.branches = append(d.branches, points)
	}
}

func (d *Diagram) AddBifurcation(r bifurcation.Record) {
	if len(r.X) == 0 {
		return
	}
	p := dynamo.Point{X: r.X}
	d.markers = append(d.markers, marker{lambda: r.Lambda(), value: d.measure(p), mark: KindMark(r.Kind)})
}

// Bounds returns the plotted range, widened when degenerate.
func (d *Diagram) Bounds() (lmin, lmax, vmin, vmax float64) {
	lmin, vmin = math.Inf(1), math.Inf(1)
	lmax, vmax = math.Inf(-1), math.Inf(-1)
	grow := func(l, v float64) {
		lmin, lmax = math.Min(lmin, l), math.Max(lmax, l)
		vmin, vmax = math.Min(vmin, v), math.Max(vmax, v)
	}
	for _, b := range d.branches {
		for _, p := range b {
			grow(p.Lambda(), d.measure(p))
		}
	}
	for _, m := range d.markers {
		grow(m.lambda, m.value)
	}
	if math.IsInf(lmin, 1) {
		return 0, 1, 0, 1
	}
	if lmax == lmin {
		lmin, lmax = lmin-0.5, lmax+0.5
	}
	if vmax == vmin {
		vmin, vmax = vmin-0.5, vmax+0.5
	}
	return lmin, lmax, vmin, vmax
}

// Canvas draws the diagram without axes.
func (d *Diagram) Canvas() *Canvas {
	c := NewCanvas(d.Width, d.Height)
	if d.Width <= 0 || d.Height <= 0 {
		return c
	}
	lmin, lmax, vmin, vmax := d.Bounds()
	w, h := c.Dots()
	project := func(l, v float64) (int, int) {
		x := int(math.Round((l - lmin) / (lmax - lmin) * float64(w-1)))
		y := h - 1 - int(math.Round((v-vmin)/(vmax-vmin)*float64(h-1)))
		return x, y
	}

	for _, b := range d.branches {
		x0, y0 := project(b[0].Lambda(), d.measure(b[0]))
		c.Set(x0, y0)
		for i := 1; i < len(b); i++ {
			x1, y1 := project(b[i].Lambda(), d.measure(b[i]))
			dash := 1
			if b[i].Unstable > 0 || b[i-1].Unstable > 0 {
				dash = 2
			}
			c.DrawLine(x0, y0, x1, y1, dash)
			x0, y0 = x1, y1
		}
	}
	for _, m := range d.markers {
		x, y := project(m.lambda, m.value)
		c.Mark(x, y, m.mark)
	}
	return c
}

// Render draws the diagram with value labels on the left and the λ range
// underneath.
func (d *Diagram) Render() string {
	if d.Width <= 0 || d.Height <= 0 {
		return ""
	}
	lmin, lmax, vmin, vmax := d.Bounds()
	rows := d.Canvas().Rows()

	top, bottom := fmt.Sprintf("%.3g", vmax), fmt.Sprintf("%.3g", vmin)
	pad := len(top)
	if len(bottom) > pad {
		pad = len(bottom)
	}

	var b strings.Builder
	for i, row := range rows {
		label := ""
		switch i {
		case 0:
			label = top
		case len(rows) - 1:
			label = bottom
		}
		fmt.Fprintf(&b, "%*s │%s\n", pad, label, row)
	}
	fmt.Fprintf(&b, "%*s └%s\n", pad, "", strings.Repeat("─", d.Width))

	left, right := fmt.Sprintf("%.4g", lmin), fmt.Sprintf("λ %.4g", lmax)
	gap := d.Width - len(left) - len([]rune(right))
	if gap < 1 {
		gap = 1
	}
	fmt.Fprintf(&b, "%*s  %s%s%s\n", pad, "", left, strings.Repeat(" ", gap), right)
	return b.String()
}
