package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemember(t *testing.T) {
	c := New(memory.New(), "test:", time.Minute)
	calls := 0

	load := func() (map[string]int64, error) {
		calls++

		return map[string]int64{"Pending": 3}, nil
	}

	for range 3 {
		v, err := Remember(c, "counts", load)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v["Pending"])
	}

	assert.Equal(t, 1, calls)

	c.Invalidate("counts")

	_, err := Remember(c, "counts", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRememberLoadError(t *testing.T) {
	c := New(memory.New(), "", time.Minute)
	boom := errors.New("boom")

	_, err := Remember(c, "k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	ok, err := c.Get("k", new(int))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilStoreDisablesCache(t *testing.T) {
	c := New(nil, "", time.Minute)
	calls := 0

	for range 2 {
		_, err := Remember(c, "k", func() (int, error) {
			calls++

			return 1, nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, calls)
}
