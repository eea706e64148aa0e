package grove

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIDMonotonic(t *testing.T) {
	require := require.New(t)

	a := NewID()
	b := NewID()
	c := NewID()

	require.Less(uint64(a), uint64(b))
	require.Less(uint64(b), uint64(c))
}

func TestNewIDNeverZero(t *testing.T) {
	require := require.New(t)
	for i := 0; i < 100; i++ {
		require.NotZero(uint64(NewID()))
	}
}
