package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopConvertingSourceHighestRateWins(t *testing.T) {
	sources := []SourceStats{
		{Source: "google", Sessions: 100, ConversionRate: 5.0},
		{Source: "facebook", Sessions: 50, ConversionRate: 12.0},
		{Source: DirectTrafficSource, Sessions: 200, ConversionRate: 2.0},
	}

	top := topConvertingSource(sources)
	require.NotNil(t, top)
	assert.Equal(t, "facebook", top.Source)
}

func TestTopConvertingSourceTieBreaks(t *testing.T) {
	tests := []struct {
		name    string
		sources []SourceStats
		want    string
	}{
		{
			name: "equal rate breaks on session count",
			sources: []SourceStats{
				{Source: "google", Sessions: 100, ConversionRate: 10.0},
				{Source: "facebook", Sessions: 300, ConversionRate: 10.0},
			},
			want: "facebook",
		},
		{
			name: "equal rate and sessions breaks on lexically smaller name",
			sources: []SourceStats{
				{Source: "twitter", Sessions: 100, ConversionRate: 10.0},
				{Source: "facebook", Sessions: 100, ConversionRate: 10.0},
			},
			want: "facebook",
		},
		{
			name: "tie break is order independent",
			sources: []SourceStats{
				{Source: "facebook", Sessions: 100, ConversionRate: 10.0},
				{Source: "twitter", Sessions: 100, ConversionRate: 10.0},
			},
			want: "facebook",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			top := topConvertingSource(tc.sources)
			require.NotNil(t, top)
			assert.Equal(t, tc.want, top.Source)
		})
	}
}

func TestTopConvertingSourceEmpty(t *testing.T) {
	assert.Nil(t, topConvertingSource(nil))
	assert.Nil(t, topConvertingSource([]SourceStats{}))
}
