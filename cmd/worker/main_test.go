package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/app"
	_ "github.com/stocksavvy/stocksavvy/testing"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}
