package listing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	c, err := Compare(decimal.RequireFromString("9.99"), 10)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(int64(3), 3.0)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = Compare(true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = Compare(base.Add(time.Second), base)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = Compare("a", 1)
	assert.Error(t, err)
	_, err = Compare(struct{}{}, 1)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate([]Filter{Eq("a", 1), Eq("b", 2), AtLeast("c", 1), AtMost("c", 5)}))
	assert.NoError(t, Validate([]Filter{AtLeast(SortField, base), AtMost("c", 5)}))
	assert.ErrorIs(t, Validate([]Filter{AtLeast("c", 1), AtMost("d", 5)}), ErrUnsupportedFilter)
	assert.ErrorIs(t, Validate([]Filter{{Field: "a", Op: "!="}}), ErrUnsupportedFilter)
	assert.ErrorIs(t, Validate([]Filter{Eq("", 1)}), ErrUnsupportedFilter)
}
