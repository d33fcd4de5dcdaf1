package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestReplayScenarios(t *testing.T) {
	tests := []struct {
		file   string
		bids   []core.Level
		asks   []core.Level
		output []string
	}{
		{
			file:   "testdata/partial_fill.yaml",
			asks:   []core.Level{{Price: 100, Qty: 6, Orders: 1}},
			output: []string{
				"submit B1 BUY 4 @ 1.05",
				"vs S1",
				"PASS",
			},
		},
		{
			file:   "testdata/residual_rests.yaml",
			output: []string{
				"rejected order_not_cancelable",
				"rejected order_not_found",
				"PASS",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			sc, err := loadScenario(tt.file)
			require.NoError(t, err)

			var out bytes.Buffer
			book, failed, err := replay(context.Background(), sc, &out)
			require.NoError(t, err)
			assert.Zero(t, failed, out.String())

			for _, want := range tt.output {
				assert.Contains(t, out.String(), want)
			}
			assert.Equal(t, len(tt.bids), len(book.Depth(core.Buy, 0)))
			if tt.asks != nil {
				assert.Equal(t, tt.asks, book.Depth(core.Sell, 0))
			}
		})
	}
}

func TestReplayReportsFailedExpectations(t *testing.T) {
	sc, err := parseScenario(strings.NewReader(`
symbol: ABC-USD
steps:
  - submit: {id: S1, side: SELL, price: 100, qty: 10}
    expect:
      trades: 1
      orders:
        S1: {state: FILLED}
  - cancel: nope
`))
	require.NoError(t, err)

	var out bytes.Buffer
	_, failed, err := replay(context.Background(), sc, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "trades: expected 1, got 0")
	assert.Contains(t, out.String(), "expected state FILLED, got OPEN")
}

func TestParseScenarioErrors(t *testing.T) {
	tests := map[string]string{
		"no symbol":     "steps: []\n",
		"empty step":    "symbol: X\nsteps:\n  - expect: {trades: 0}\n",
		"both ops":      "symbol: X\nsteps:\n  - cancel: a\n    submit: {id: a, side: BUY, price: 1, qty: 1}\n",
		"unknown field": "symbol: X\nbogus: 1\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseScenario(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestCheckUnexpectedError(t *testing.T) {
	sc, err := parseScenario(strings.NewReader(`
symbol: ABC-USD
steps:
  - submit: {id: B1, side: BUY, price: 0, qty: 1}
    expect:
      trades: 0
`))
	require.NoError(t, err)

	var out bytes.Buffer
	_, failed, err := replay(context.Background(), sc, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "unexpected error")
}
