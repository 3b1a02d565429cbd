package polyline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_GoogleExample(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []Pair
	}{
		{
			name:     "single point",
			encoded:  "_p~iF~ps|U",
			expected: []Pair{{38.5, -120.2}},
		},
		{
			name:     "two points",
			encoded:  "_p~iF~ps|U_ulLnnqC",
			expected: []Pair{{38.5, -120.2}, {40.7, -120.95}},
		},
		{
			name:     "three points",
			encoded:  "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []Pair{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.encoded)
			require.NoError(t, err)
			require.Len(t, got, len(tt.expected))
			for i := range got {
				assert.InDelta(t, tt.expected[i][0], got[i][0], 1e-6)
				assert.InDelta(t, tt.expected[i][1], got[i][1], 1e-6)
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecode_Truncated(t *testing.T) {
	// Latitude present, longitude chunk cut off mid-value.
	_, err := Decode("_p~iF~ps")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncode_GoogleExample(t *testing.T) {
	got := Encode([]Pair{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}})
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", got)
	assert.Empty(t, Encode(nil))
}

func TestPrecision6RoundTrip(t *testing.T) {
	pairs := []Pair{{40.712812, -74.006013}, {40.758901, -73.985112}}

	encoded := EncodePrecision(pairs, Precision6)
	decoded, err := DecodePrecision(encoded, Precision6)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range pairs {
		assert.InDelta(t, pairs[i][0], decoded[i][0], 1e-6)
		assert.InDelta(t, pairs[i][1], decoded[i][1], 1e-6)
	}
}

func BenchmarkDecode(b *testing.B) {
	encoded := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	for i := 0; i < b.N; i++ {
		_, _ = Decode(encoded)
	}
}
