package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf, "Sample", "Genotype", "Similarity")

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteComment("query 1"))
	require.NoError(t, w.Write("S1", "C, T", "1"))
	require.NoError(t, w.Write("S2", "", "0.5"))
	require.NoError(t, w.Flush())

	assert.Equal(t, "Sample\tGenotype\tSimilarity\n## query 1\nS1\tC, T\t1\nS2\t-\t0.5\n", buf.String())
}

func TestRank(t *testing.T) {
	ranked := Rank(map[string]float64{"b": 0.5, "a": 0.5, "c": 1, "d": 0})

	require.Len(t, ranked, 4)
	assert.Equal(t, []Scored{
		{Label: "c", Score: 1},
		{Label: "a", Score: 0.5},
		{Label: "b", Score: 0.5},
		{Label: "d", Score: 0},
	}, ranked)
}

func TestWriteRanking(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRanking(&buf, "Sample", "Similarity", map[string]float64{"x": 0.25, "y": 0.75}))
	assert.Equal(t, "Sample\tSimilarity\ny\t0.75\nx\t0.25\n", buf.String())
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "1", FormatScore(1))
	assert.Equal(t, "0.5", FormatScore(0.5))
	assert.Equal(t, "0.3333", FormatScore(0.3333))
}
