package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAverageRate(t *testing.T) {
	cases := []struct {
		desc string
		text string
		want float64
	}{
		{desc: "plain", text: "average rate: 10.003\n  min: 0.099s max: 0.100s", want: 10.003},
		{desc: "integer", text: "average rate: 30", want: 30},
		{desc: "missing", text: "no messages received", want: -1},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, tc.want, parseAverageRate(tc.text), 1e-9)
		})
	}
}

func TestParseBandwidthBps(t *testing.T) {
	cases := []struct {
		desc string
		text string
		want float64
	}{
		{desc: "bytes", text: "12 B/s from 20 messages", want: 12},
		{desc: "kilobytes", text: "1.5 KB/s from 20 messages", want: 1.5 * 1024},
		{desc: "megabytes", text: "2 MB/s from 20 messages", want: 2 * 1024 * 1024},
		{desc: "gigabytes", text: "0.5 GB/s", want: 0.5 * 1024 * 1024 * 1024},
		{desc: "missing", text: "subscribed to /x", want: -1},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, tc.want, parseBandwidthBps(tc.text), 1e-6)
		})
	}
}

func TestLinearSlope(t *testing.T) {
	assert.Zero(t, linearSlope([]float64{1, 2}))
	assert.InDelta(t, 1.0, linearSlope([]float64{0, 1, 2, 3, 4}), 1e-9)
	assert.InDelta(t, 0.0, linearSlope([]float64{5, 5, 5, 5}), 1e-9)
	assert.InDelta(t, -2.0, linearSlope([]float64{10, 8, 6, 4}), 1e-9)
}

func TestPushBoundedDropsOldestFirst(t *testing.T) {
	var window []float64
	for i := 0; i < 105; i++ {
		window = pushBounded(window, float64(i), 100)
	}
	assert.Len(t, window, 100)
	assert.InDelta(t, 5.0, window[0], 1e-9)
	assert.InDelta(t, 104.0, window[99], 1e-9)
}

func TestBpsToMbps(t *testing.T) {
	assert.InDelta(t, 8.0, bpsToMbps(1024*1024), 1e-9)
}

func TestHashTextIsStable(t *testing.T) {
	assert.Equal(t, hashText("abc"), hashText("abc"))
	assert.NotEqual(t, hashText("abc"), hashText("abd"))
	assert.Len(t, hashText("abc"), 64)
}
