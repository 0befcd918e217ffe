package inventory

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProductFilterMatch(t *testing.T) {
	shoe := Product{ProductID: "AJ1", Name: "Air Jordan 1", Category: "Sneakers", Status: StatusInStock}
	sold := Product{ProductID: "px7", Name: "Pixel 7", Category: "Phones", Status: StatusSold, Archived: true}

	cases := []struct {
		query string
		shoe  bool
		sold  bool
	}{
		{"", true, true},
		{"q=jordan", true, false},
		{"q=%20PX7%20", false, true},
		{"q=phone", false, true},
		{"category=Sneakers", true, false},
		{"category=sneakers", false, false},
		{"status=Sold", false, true},
		{"archived=false", true, false},
		{"archived=true", true, true},
		{"category=Phones&q=air", false, false},
	}
	for _, tc := range cases {
		q, err := url.ParseQuery(tc.query)
		require.NoError(t, err)
		f := FilterFromQuery(q)
		require.Equal(t, tc.shoe, f.Match(shoe), tc.query)
		require.Equal(t, tc.sold, f.Match(sold), tc.query)
	}
}

func TestCategoriesAreDistinctAndSorted(t *testing.T) {
	products := []Product{{Category: "Phones"}, {Category: "Sneakers"}, {Category: "Phones"}, {}}
	require.Equal(t, []string{"Phones", "Sneakers"}, Categories(products))
	require.Empty(t, Categories(nil))
}
