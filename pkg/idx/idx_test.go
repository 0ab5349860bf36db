package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("generates unique sortable ids", func(t *testing.T) {
		t.Parallel()

		seen := make(map[ID]bool)
		var prev ID
		for n := 0; n < 1000; n++ {
			id := New()
			require.False(t, seen[id])
			seen[id] = true
			require.False(t, id.IsZero())
			if prev != Zero {
				require.GreaterOrEqual(t, id.String(), prev.String())
			}
			prev = id
		}
	})

	t.Run("embeds the creation time", func(t *testing.T) {
		t.Parallel()

		at := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
		id := NewAt(at)
		require.Equal(t, at, id.Time())
	})
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("roundtrip", func(t *testing.T) {
		t.Parallel()
		id := New()
		parsed, err := Parse(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		t.Parallel()
		for _, bad := range []string{"", "   ", "not-a-ulid", "0000"} {
			_, err := Parse(bad)
			require.ErrorIs(t, err, ErrInvalid)
		}
	})

	t.Run("zero id has zero time", func(t *testing.T) {
		t.Parallel()
		require.True(t, Zero.IsZero())
		require.True(t, Zero.Time().IsZero())
	})
}
