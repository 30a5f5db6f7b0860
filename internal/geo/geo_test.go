package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadiawater/reachsync/internal/errors"
)

func TestDistanceOneDegreeOfLatitude(t *testing.T) {
	t.Parallel()

	// One degree of latitude along a meridian is ~111.2 km.
	d := Distance(Point{Lon: 0, Lat: 0}, Point{Lon: 0, Lat: 1})
	assert.InEpsilon(t, 111.2, d, 0.005)
}

func TestPathLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path Path
		want float64
	}{
		{"empty path", Path{}, 0},
		{"single vertex", Path{{Lon: -121.6, Lat: 45.7}}, 0},
		{"one degree north", Path{{0, 0}, {0, 1}}, 111.2},
		{"two segments", Path{{0, 0}, {0, 1}, {0, 2}}, 222.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := PathLength(tt.path)
			if tt.want == 0 {
				assert.Zero(t, got)
			} else {
				assert.InEpsilon(t, tt.want, got, 0.005)
			}
		})
	}
}

func TestLengthMultiPart(t *testing.T) {
	t.Parallel()

	// Two disjoint paths, e.g. a reach split by a portage.
	g := Geometry{
		{{1, 1}, {1, 2}},
		{{0, 0}, {0, 1}},
	}
	total, err := Length(g)
	require.NoError(t, err)
	assert.InEpsilon(t, 222.4, total, 0.005)
}

func TestLengthNoGeometry(t *testing.T) {
	t.Parallel()

	_, err := Length(Geometry{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoGeometry))
	assert.True(t, errors.IsNoGeometry(err))
}

func TestLengthDegeneratePathsAreNotNoGeometry(t *testing.T) {
	t.Parallel()

	// A geometry containing only degenerate paths has a defined length of zero.
	total, err := Length(Geometry{{}, {{Lon: 5, Lat: 5}}})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLengthReversalInvariance(t *testing.T) {
	t.Parallel()

	g := Geometry{
		{{-121.63, 45.76}, {-121.60, 45.75}, {-121.55, 45.73}},
		{{-121.50, 45.71}, {-121.48, 45.70}},
	}
	forward, err := Length(g)
	require.NoError(t, err)

	reversed := make(Geometry, len(g))
	for i, p := range g {
		rp := make(Path, len(p))
		for j := range p {
			rp[len(p)-1-j] = p[j]
		}
		reversed[i] = rp
	}
	backward, err := Length(reversed)
	require.NoError(t, err)

	assert.InDelta(t, forward, backward, 1e-9)
}

func TestLengthDeterminism(t *testing.T) {
	t.Parallel()

	g := Geometry{{{-121.63, 45.76}, {-121.60, 45.75}, {-121.55, 45.73}, {-121.52, 45.72}}}
	first, err := Length(g)
	require.NoError(t, err)
	for range 10 {
		again, err := Length(g)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMidpoint(t *testing.T) {
	t.Parallel()

	m := Midpoint(Point{Lon: -121.6, Lat: 45.7}, Point{Lon: -121.4, Lat: 45.9})
	assert.InDelta(t, -121.5, m.Lon, 1e-9)
	assert.InDelta(t, 45.8, m.Lat, 1e-9)
}
