package svg

// TickFormatter renders a y-axis value.
type TickFormatter func(float64) string

// Series is one named run of values drawn in a single colour.
type Series struct {
	Name   string
	Color  string
	Values []float64
}

// Frame is the viewport shared by every chart kind. Zero fields take the
// package defaults.
type Frame struct {
	Width     int
	Height    int
	Padding   float64
	Ticks     int
	AxisColor string
	GridColor string
}

// LineOpts customises Line.
type LineOpts struct {
	Frame
	Title       string
	Description string
	Fill        string
	ShowDots    bool
	TickFormat  TickFormatter
}

// BarOpts customises Bars.
type BarOpts struct {
	Frame
	Title       string
	Description string
	TickFormat  TickFormatter
}

const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 24.0
	DefaultTicks   = 6
)

var palette = []string{"#0ea5e9", "#f97316", "#16a34a", "#9333ea"}

func (f Frame) withDefaults() Frame {
	if f.Width <= 0 {
		f.Width = DefaultWidth
	}
	if f.Height <= 0 {
		f.Height = DefaultHeight
	}
	if f.Padding <= 0 {
		f.Padding = DefaultPadding
	}
	if f.Ticks <= 0 {
		f.Ticks = DefaultTicks
	}
	f.AxisColor = orDefault(f.AxisColor, "#475569")
	f.GridColor = orDefault(f.GridColor, "#cbd5f5")
	return f
}
