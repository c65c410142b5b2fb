package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funneltrack/internal/timeframe"
)

func TestFunnelCacheKeyRoundTrip(t *testing.T) {
	tf, err := timeframe.New(
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	key := funnelCacheKey(tf)
	assert.Equal(t, "funnel_2026-04-01_2026-04-30", key)

	parsed, err := timeFrameFromCacheKey(key)
	require.NoError(t, err)
	assert.Equal(t, tf.From, parsed.From)
	assert.Equal(t, tf.To, parsed.To)
}

func TestFunnelCacheKeyDistinctRangesDistinctKeys(t *testing.T) {
	a, err := timeframe.New(
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	b, err := timeframe.New(
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 29, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.NotEqual(t, funnelCacheKey(a), funnelCacheKey(b))
}

func TestTimeFrameFromCacheKeyRejectsMalformedKeys(t *testing.T) {
	for _, key := range []string{"", "funnel_", "funnel_2026-04-01", "funnel_abc_def"} {
		_, err := timeFrameFromCacheKey(key)
		assert.Error(t, err, "key %q should be rejected", key)
	}
}
