package ncclpg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocollective/ncclpg/internal/simulate"
)

// TestGetKeyOrderIndependence checks that the device-set key does not
// depend on the order devices are passed in.
func TestGetKeyOrderIndependence(t *testing.T) {
	assert.Equal(t, getKey([]int{0, 1, 2}), getKey([]int{2, 0, 1}))
	assert.NotEqual(t, getKey([]int{0, 1}), getKey([]int{0, 1, 2}))
}

// TestGetCommReusesBundle checks that back-to-back calls for the same
// device set return the identical communicator bundle rather than
// creating a new one.
func TestGetCommReusesBundle(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	pg := newTestGroup(t, 0, 1, 2, backend, st, testOptions())

	key := getKey([]int{0, 1})
	first, err := pg.getComm(key, []int{0, 1})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := pg.getComm(key, []int{0, 1})
	require.NoError(t, err)
	require.Len(t, second, 2)

	for i := range first {
		assert.Same(t, first[i], second[i])
	}
}

// TestGetCommDistinctKeysDistinctBundles checks that different device
// sets never share a communicator.
func TestGetCommDistinctKeysDistinctBundles(t *testing.T) {
	backend := simulate.NewBackend("1.0.0")
	st := simulate.NewStore()
	pg := newTestGroup(t, 0, 1, 2, backend, st, testOptions())

	a, err := pg.getComm(getKey([]int{0}), []int{0})
	require.NoError(t, err)
	b, err := pg.getComm(getKey([]int{1}), []int{1})
	require.NoError(t, err)

	assert.NotSame(t, a[0], b[0])
}
