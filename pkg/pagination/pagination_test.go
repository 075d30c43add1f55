package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC), ID: uuid.New()}

	got, err := Decode(want.Encode())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.ID, got.ID)
	assert.NotContains(t, want.Encode(), "=")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm9kb3Q", "MTIzLm5vdC1hLXV1aWQ"} {
		_, err := Decode(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
	c, err := Decode("  ")
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestWindowClampsLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultLimit, -3: DefaultLimit, 7: 7, MaxLimit + 1: MaxLimit} {
		limit, cursor, err := Params{Limit: in}.Window()
		require.NoError(t, err)
		assert.Nil(t, cursor)
		assert.Equal(t, want, limit, in)
	}
}

func TestSplit(t *testing.T) {
	rows, more := Split([]int{1, 2, 3}, 2)
	assert.Equal(t, []int{1, 2}, rows)
	assert.True(t, more)

	rows, more = Split([]int{1, 2}, 2)
	assert.Equal(t, []int{1, 2}, rows)
	assert.False(t, more)
}
