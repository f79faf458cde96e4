package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, limit      int
		wantPage, wantLn int
	}{
		{0, 0, 1, 20},
		{-3, 5, 1, 5},
		{2, 500, 2, 100},
		{4, 1, 4, 1},
	}
	for _, tc := range cases {
		p, l := ClampPage(tc.page, tc.limit, 20, 100)
		assert.Equal(t, tc.wantPage, p)
		assert.Equal(t, tc.wantLn, l)
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 1, TotalPages(0, 20))
	assert.Equal(t, 1, TotalPages(20, 20))
	assert.Equal(t, 2, TotalPages(21, 20))
	assert.Equal(t, 7, TotalPages(61, 10))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_sure\\`, EscapeLike(`100% _sure\`))
}

func TestOptionalInt64(t *testing.T) {
	v, err := OptionalInt64("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = OptionalInt64(" 42 ")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(42), *v)

	_, err = OptionalInt64("abc")
	assert.Error(t, err)
}
