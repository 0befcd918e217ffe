package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBarsProducesSVG(t *testing.T) {
	html, err := Bars([]string{"Jan 2024", "Feb 2024"}, []Series{
		{Name: "Sales", Values: []float64{500, 600}},
		{Name: "Purchases", Values: []float64{300, 320}},
	}, BarOpts{Title: "Monthly sales and purchases", TickFormat: CurrencyTick})
	require.NoError(t, err)
	output := string(html)
	require.True(t, strings.HasPrefix(output, "<svg"))
	require.Equal(t, 4+2, strings.Count(output, "<rect"), "four bars and two legend swatches")
	require.Contains(t, output, "Purchases")
	require.Contains(t, output, "$600")
}

func TestBarsSkipsEmptySeries(t *testing.T) {
	html, err := Bars([]string{"Jan 2024"}, []Series{{Name: "Sales", Values: []float64{10}}, {Name: "Purchases"}}, BarOpts{})
	require.NoError(t, err)
	require.NotContains(t, string(html), "Purchases")
}

func TestBarsNegativeValuesHangBelowBaseline(t *testing.T) {
	html, err := Bars([]string{"Jan 2024", "Feb 2024"}, []Series{{Name: "Margin", Values: []float64{-50, 50}}}, BarOpts{})
	require.NoError(t, err)
	require.NotContains(t, string(html), `height="-`)
}

func TestBarsRejectsBadInput(t *testing.T) {
	_, err := Bars([]string{"Jan 2024"}, []Series{{Values: []float64{1, 2}}}, BarOpts{})
	require.Error(t, err)

	_, err = Bars([]string{"Jan 2024"}, []Series{{Name: "Sales"}}, BarOpts{})
	require.Error(t, err)

	_, err = Bars(nil, []Series{{Values: []float64{1}}}, BarOpts{})
	require.Error(t, err)

	_, err = Bars([]string{"Jan 2024"}, []Series{{Values: []float64{1}}}, BarOpts{Frame: Frame{Width: 20, Height: 20, Padding: 12}})
	require.ErrorIs(t, err, errViewport)
}
