package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	err := Newf("engine refused: %s", "ErrorInvalidState").
		Component("adapter").
		Category(CategoryAudio).
		Context("operation", "request_start").
		Build()

	require.Error(t, err)
	assert.Equal(t, "adapter", err.Component)
	assert.Equal(t, CategoryAudio, err.Category)
	assert.Equal(t, "request_start", err.GetContext()["operation"])
	assert.Contains(t, err.Error(), "ErrorInvalidState")
}

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := New(NewStd("boom")).Build()
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.NotEmpty(t, err.Component)
	assert.False(t, err.Timestamp.IsZero())
}

func TestUnwrapAndIs(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	wrapped := New(fmt.Errorf("outer: %w", sentinel)).Category(CategoryState).Build()

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, IsCategory(wrapped, CategoryState))
	assert.False(t, IsCategory(wrapped, CategoryTimeout))
	assert.False(t, IsCategory(sentinel, CategoryState))
}

func TestCategoryMatchingViaIs(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryTimeout).Build()
	b := Newf("b").Category(CategoryTimeout).Build()
	c := Newf("c").Category(CategoryAudio).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}
