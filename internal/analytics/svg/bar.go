package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
)

// Bars renders a grouped bar chart with one bar per series in each label
// group. Series without values are skipped.
func Bars(labels []string, series []Series, opts BarOpts) (template.HTML, error) {
	if len(labels) == 0 {
		return "", errors.New("svg: labels required")
	}
	drawn := make([]Series, 0, len(series))
	values := make([][]float64, 0, len(series))
	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		if len(s.Values) != len(labels) {
			return "", fmt.Errorf("svg: series %q length must match labels", s.Name)
		}
		s.Color = orDefault(s.Color, palette[i%len(palette)])
		drawn = append(drawn, s)
		values = append(values, s.Values)
	}
	if len(drawn) == 0 {
		return "", errors.New("svg: at least one series required")
	}
	c, err := newCanvas(opts.Frame, values...)
	if err != nil {
		return "", err
	}

	c.open("bar", orDefault(opts.Title, "Bar chart"), orDefault(opts.Description, "Grouped bar comparison"))
	c.grid(opts.TickFormat)
	c.axes()

	group := c.plotW / float64(len(labels))
	width := group / float64(len(drawn)+1)
	zero := c.y(0)
	for i, label := range labels {
		x := c.left() + float64(i)*group + width/2
		for _, s := range drawn {
			top := c.y(s.Values[i])
			c.printf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s"></rect>`,
				x, math.Min(top, zero), width, math.Abs(zero-top), s.Color, template.HTMLEscapeString(s.Name+" "+label))
			x += width
		}
		c.xLabel(c.left()+float64(i)*group+group/2, label)
	}
	c.legend(drawn)
	return c.html(), nil
}
