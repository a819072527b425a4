package generic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOption(t *testing.T) {
	assert := assert.New(t)

	some := Some("report.pdf")
	assert.True(some.IsSome())
	assert.False(some.IsNone())
	assert.Equal("report.pdf", some.Unwrap())
	assert.Equal("report.pdf", some.UnwrapOr("download"))

	none := None[string]()
	assert.True(none.IsNone())
	assert.Equal("download", none.UnwrapOr("download"))
	assert.PanicsWithValue("missing name", func() { none.Expect("missing name") })
	assert.Panics(func() { none.Unwrap() })
}

func TestUnwrap(t *testing.T) {
	assert := assert.New(t)
	err := errors.New("failed")

	assert.Equal(42, Unwrap(42, nil))
	assert.PanicsWithValue(err, func() { Unwrap(0, err) })
	assert.NotPanics(func() { Unwrap_(nil) })
	assert.PanicsWithValue(err, func() { Unwrap_(err) })
}
