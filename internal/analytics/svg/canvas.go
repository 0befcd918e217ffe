package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

var errViewport = errors.New("svg: viewport too small")

// canvas accumulates SVG markup for a plot area whose value range always
// includes zero.
type canvas struct {
	b      strings.Builder
	f      Frame
	plotW  float64
	plotH  float64
	lo, hi float64
}

func newCanvas(f Frame, values ...[]float64) (*canvas, error) {
	f = f.withDefaults()
	c := &canvas{
		f:     f,
		plotW: float64(f.Width) - 2*f.Padding,
		plotH: float64(f.Height) - 2*f.Padding,
	}
	if c.plotW <= 0 || c.plotH <= 0 {
		return nil, errViewport
	}
	for _, vs := range values {
		for _, v := range vs {
			c.lo = math.Min(c.lo, v)
			c.hi = math.Max(c.hi, v)
		}
	}
	if c.hi-c.lo < 1e-9 {
		c.hi = c.lo + 1
	}
	return c, nil
}

func (c *canvas) printf(format string, args ...any) {
	fmt.Fprintf(&c.b, format, args...)
}

func (c *canvas) left() float64   { return c.f.Padding }
func (c *canvas) bottom() float64 { return c.f.Padding + c.plotH }

// y maps a value onto the vertical pixel axis.
func (c *canvas) y(v float64) float64 {
	return c.bottom() - (v-c.lo)/(c.hi-c.lo)*c.plotH
}

func (c *canvas) open(kind, title, desc string) {
	titleID := elementID(title, kind+"-title")
	descID := elementID(title, kind+"-desc")
	c.printf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, c.f.Width, c.f.Height, titleID, descID)
	c.printf(`<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(title))
	c.printf(`<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(desc))
}

func (c *canvas) grid(format TickFormatter) {
	if format == nil {
		format = formatTick
	}
	for i := 0; i <= c.f.Ticks; i++ {
		v := c.lo + (c.hi-c.lo)*float64(i)/float64(c.f.Ticks)
		y := c.y(v)
		c.printf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, c.left(), y, c.left()+c.plotW, y, c.f.GridColor)
		c.text(c.left()-6, y+4, "end", format(v))
	}
}

// axes draws the y axis and a horizontal baseline at value zero.
func (c *canvas) axes() {
	zero := c.y(0)
	c.printf(`<g stroke="%s" stroke-width="1" aria-label="Axes">`, c.f.AxisColor)
	c.printf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line>`, c.left(), c.f.Padding, c.left(), c.bottom())
	c.printf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line>`, c.left(), zero, c.left()+c.plotW, zero)
	c.b.WriteString(`</g>`)
}

func (c *canvas) text(x, y float64, anchor, s string) {
	c.printf(`<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="%s">%s</text>`, x, y, c.f.AxisColor, anchor, template.HTMLEscapeString(s))
}

func (c *canvas) xLabel(x float64, label string) {
	c.text(x, c.bottom()+14, "middle", label)
}

// legend lists named series along the top margin.
func (c *canvas) legend(series []Series) {
	x := c.left()
	y := math.Max(c.f.Padding-12, 12)
	for _, s := range series {
		if s.Name == "" {
			continue
		}
		c.printf(`<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, x, y-8, s.Color)
		c.text(x+14, y, "start", s.Name)
		x += 90
	}
}

func (c *canvas) html() template.HTML {
	c.b.WriteString(`</svg>`)
	return template.HTML(c.b.String())
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func elementID(base, suffix string) string {
	slug := strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base))), "-")
	if slug == "" {
		slug = "chart"
	}
	return slug + "-" + suffix
}

var magnitudes = []struct {
	div    float64
	suffix string
}{
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "k"},
}

// formatTick abbreviates large values, e.g. 1500 becomes "1.5k".
func formatTick(v float64) string {
	for _, m := range magnitudes {
		if math.Abs(v) >= m.div {
			return fmt.Sprintf("%.1f%s", v/m.div, m.suffix)
		}
	}
	if math.Abs(v-math.Round(v)) < 1e-9 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
