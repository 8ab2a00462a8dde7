package suppress

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/corner-detector/pkg/response"
	"github.com/menta2k/corner-detector/pkg/types"
)

// scoreMap builds an m x n map of sentinels with the given cells set
func scoreMap(m, n int, cells map[types.Corner]float64) *response.ScoreMap {
	data := make([]float64, m*n)
	for i := range data {
		data[i] = response.Sentinel
	}
	for c, v := range cells {
		data[c.Row*n+c.Col] = v
	}
	return response.NewScoreMap(data, m, n)
}

func TestCollect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cells map[types.Corner]float64
		t     float64
		want  types.CornerSet
	}{
		{
			name:  "single peak",
			cells: map[types.Corner]float64{{Row: 4, Col: 5}: 9, {Row: 4, Col: 6}: 2},
			t:     1,
			want:  types.CornerSet{{Row: 4, Col: 5}},
		},
		{
			name:  "greater neighbour suppresses",
			cells: map[types.Corner]float64{{Row: 2, Col: 2}: 5, {Row: 4, Col: 4}: 7},
			t:     1,
			want:  types.CornerSet{{Row: 4, Col: 4}},
		},
		{
			name: "plateau keeps first in raster order",
			cells: map[types.Corner]float64{
				{Row: 3, Col: 4}: 5, {Row: 3, Col: 3}: 5, {Row: 4, Col: 3}: 5, {Row: 4, Col: 4}: 5,
			},
			t:    5,
			want: types.CornerSet{{Row: 3, Col: 3}},
		},
		{
			name:  "equal peaks at radius distance",
			cells: map[types.Corner]float64{{Row: 1, Col: 1}: 3, {Row: 1, Col: 4}: 3},
			t:     3,
			want:  types.CornerSet{{Row: 1, Col: 1}},
		},
		{
			name:  "equal peaks beyond radius",
			cells: map[types.Corner]float64{{Row: 1, Col: 1}: 3, {Row: 1, Col: 5}: 3, {Row: 5, Col: 1}: 3},
			t:     3,
			want:  types.CornerSet{{Row: 1, Col: 1}, {Row: 1, Col: 5}, {Row: 5, Col: 1}},
		},
		{
			name:  "below threshold dropped",
			cells: map[types.Corner]float64{{Row: 0, Col: 0}: 4, {Row: 8, Col: 8}: 6},
			t:     5,
			want:  types.CornerSet{{Row: 8, Col: 8}},
		},
		{
			name:  "score equal to threshold kept",
			cells: map[types.Corner]float64{{Row: 6, Col: 2}: 5},
			t:     5,
			want:  types.CornerSet{{Row: 6, Col: 2}},
		},
		{
			name:  "raster order output",
			cells: map[types.Corner]float64{{Row: 8, Col: 0}: 2, {Row: 0, Col: 8}: 3, {Row: 0, Col: 0}: 1},
			t:     1,
			want:  types.CornerSet{{Row: 0, Col: 0}, {Row: 0, Col: 8}, {Row: 8, Col: 0}},
		},
		{
			name:  "nothing scored",
			cells: nil,
			t:     0,
			want:  types.CornerSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Collect(scoreMap(9, 9, tt.cells), tt.t)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Collect() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectEmptyMap(t *testing.T) {
	t.Parallel()

	got := Collect(response.NewScoreMap(nil, 0, 0), 0)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	sm := scoreMap(5, 5, map[types.Corner]float64{
		{Row: 1, Col: 1}: 1, {Row: 1, Col: 2}: 2, {Row: 2, Col: 2}: 3, {Row: 3, Col: 3}: 3,
	})
	assert.Equal(t, 3, Candidates(sm, 2))
	assert.Equal(t, 4, Candidates(sm, math.Inf(-1)))
	assert.Zero(t, Candidates(sm, 4))
}

func TestCollectProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	const m, n = 30, 40
	for iter := 0; iter < 50; iter++ {
		cells := make(map[types.Corner]float64)
		for r := 2; r < m-2; r++ {
			for c := 2; c < n-2; c++ {
				cells[types.Corner{Row: r, Col: c}] = float64(rng.IntN(20))
			}
		}
		sm := scoreMap(m, n, cells)
		thr := float64(rng.IntN(20))
		got := Collect(sm, thr)

		require.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Less(got[j]) }))
		for i, a := range got {
			assert.GreaterOrEqual(t, sm.At(a.Row, a.Col), thr)
			for _, b := range got[i+1:] {
				near := max(abs(a.Row-b.Row), abs(a.Col-b.Col)) <= Radius
				assert.False(t, near, "iteration %d: %v and %v are within the window", iter, a, b)
			}
		}
		assert.LessOrEqual(t, len(got), Candidates(sm, thr))
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func BenchmarkCollect(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	data := make([]float64, 240*320)
	for i := range data {
		data[i] = rng.Float64()
	}
	sm := response.NewScoreMap(data, 240, 320)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Collect(sm, 0.99)
	}
}
