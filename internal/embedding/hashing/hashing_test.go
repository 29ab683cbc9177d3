package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedShapeAndNorm(t *testing.T) {
	e := NewEmbedder(64)
	assert.Equal(t, "hashing", e.Name())
	assert.Equal(t, 64, e.Dimension())

	vecs, err := e.Embed(context.Background(), []string{"Lãi suất tiết kiệm", "Phí thường niên thẻ"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		require.Len(t, v, 64)
		assert.InDelta(t, 1.0, math.Sqrt(dot(v, v)), 1e-5)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	vecs, err := NewEmbedder(8).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbedStopwordsOnlyIsZero(t *testing.T) {
	vecs, err := NewEmbedder(8).Embed(context.Background(), []string{"và của là"})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vecs[0])
}

func TestEmbedDeterministicAndSimilar(t *testing.T) {
	e := NewEmbedder(512)
	ctx := context.Background()
	vecs, err := e.Embed(ctx, []string{
		"Lãi suất tiền gửi tiết kiệm kỳ hạn 12 tháng",
		"lãi suất tiền gửi tiết kiệm kỳ hạn 6 tháng",
		"Hướng dẫn đăng ký dịch vụ SmartBanking",
	})
	require.NoError(t, err)
	again, err := e.Embed(ctx, []string{"Lãi suất tiền gửi tiết kiệm kỳ hạn 12 tháng"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again[0])
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestEmbedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
