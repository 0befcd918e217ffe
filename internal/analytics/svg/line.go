package svg

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// Line renders one series as a line with an optional shaded area beneath it.
func Line(labels []string, s Series, opts LineOpts) (template.HTML, error) {
	if len(s.Values) == 0 {
		return "", errors.New("svg: series required")
	}
	if len(s.Values) != len(labels) {
		return "", errors.New("svg: labels length must match series")
	}
	c, err := newCanvas(opts.Frame, s.Values)
	if err != nil {
		return "", err
	}
	stroke := orDefault(s.Color, "#2563eb")
	fill := orDefault(opts.Fill, "rgba(37,99,235,0.12)")

	xs := make([]float64, len(labels))
	for i := range xs {
		if len(xs) == 1 {
			xs[i] = c.left() + c.plotW/2
			continue
		}
		xs[i] = c.left() + float64(i)*c.plotW/float64(len(xs)-1)
	}

	var path strings.Builder
	for i, v := range s.Values {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xs[i], c.y(v))
	}
	d := strings.TrimSpace(path.String())

	c.open("line", orDefault(opts.Title, "Line chart"), orDefault(opts.Description, "Trend data"))
	c.grid(opts.TickFormat)
	c.axes()
	c.printf(`<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" stroke="none" aria-hidden="true"></path>`, d, xs[len(xs)-1], c.y(0), xs[0], c.y(0), fill)
	c.printf(`<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, d, stroke)
	for i, v := range s.Values {
		if opts.ShowDots {
			c.printf(`<circle cx="%.2f" cy="%.2f" r="3" fill="%s"></circle>`, xs[i], c.y(v), stroke)
		}
		c.xLabel(xs[i], labels[i])
	}
	c.legend([]Series{{Name: s.Name, Color: stroke}})
	return c.html(), nil
}
