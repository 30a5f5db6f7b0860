package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := NewStd("feature service rejected update")
	ee := New(base).
		Component("featurelayer").
		Category(CategoryWriteRejected).
		Context("reach_id", "2156").
		Context("layer", "line").
		Build()

	assert.Equal(t, "feature service rejected update", ee.Error())
	assert.Equal(t, "featurelayer", ee.GetComponent())
	assert.Equal(t, string(CategoryWriteRejected), ee.GetCategory())
	assert.False(t, ee.GetTimestamp().IsZero())

	ctx := ee.GetContext()
	require.NotNil(t, ctx)
	assert.Equal(t, "2156", ctx["reach_id"])
	assert.Equal(t, "line", ctx["layer"])
}

func TestErrorBuilderDefaults(t *testing.T) {
	t.Parallel()

	ee := Newf("no geometry for reach %s", "1074").Build()
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "no geometry for reach 1074", ee.Error())
}

func TestUnwrapPreservesOriginal(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("boom")
	wrapped := fmt.Errorf("fetch failed: %w", sentinel)
	ee := New(wrapped).Category(CategorySourceFetch).Build()

	assert.True(t, Is(ee, sentinel))
	assert.Equal(t, wrapped, ee.Unwrap())
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	notFound := New(NewStd("zero features matched")).Category(CategoryNotFound).Build()
	dupe := New(NewStd("two features matched")).Category(CategoryDuplicateKey).Build()

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(dupe))
	assert.True(t, IsCategory(dupe, CategoryDuplicateKey))

	// Wrapped enhanced errors still match by category
	wrapped := fmt.Errorf("sync: %w", notFound)
	assert.True(t, IsNotFound(wrapped))
}

func TestContextCopyIsIsolated(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Context("k", "v").Build()
	ctx := ee.GetContext()
	ctx["k"] = "mutated"

	assert.Equal(t, "v", ee.GetContext()["k"])
}

func TestPriorityValidation(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Priority("bogus").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)

	ee = New(NewStd("x")).Priority(PriorityCritical).Build()
	assert.Equal(t, PriorityCritical, ee.Priority)
}
