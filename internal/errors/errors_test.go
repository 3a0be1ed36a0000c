package errors

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderFields(t *testing.T) {
	ee := Newf("failed to load %s", "known_faces.json").
		Component("identity").
		Category(CategoryFileParsing).
		Context("path", "known_faces.json").
		Build()

	assert.Equal(t, "identity", ee.GetComponent())
	assert.Equal(t, "file-parsing", ee.GetCategory())
	assert.Equal(t, "known_faces.json", ee.GetContext()["path"])

	ctx := ee.GetContext()
	ctx["path"] = "mutated"
	assert.Equal(t, "known_faces.json", ee.GetContext()["path"], "context copy must not alias")
}

func TestWrappedErrorMatching(t *testing.T) {
	ee := New(fmt.Errorf("open: %w", fs.ErrNotExist)).
		Category(CategoryFileIO).
		Build()
	wrapped := fmt.Errorf("identity store: %w", ee)

	assert.True(t, Is(wrapped, fs.ErrNotExist))
	assert.True(t, IsCategory(wrapped, CategoryFileIO))
	assert.False(t, IsCategory(wrapped, CategoryNetwork))
	assert.False(t, IsCategory(fmt.Errorf("plain"), CategoryFileIO))

	var target *EnhancedError
	require.True(t, As(wrapped, &target))
	assert.Same(t, ee, target)
}

func TestIsMatchesCategory(t *testing.T) {
	a := New(NewStd("a")).Category(CategoryTimeout).Build()
	b := New(NewStd("b")).Category(CategoryTimeout).Build()
	c := New(NewStd("c")).Category(CategoryRPC).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New(NewStd("missing")).Category(CategoryNotFound).Build()))
	assert.False(t, IsNotFound(ValidationError("bad")))
}

func TestErrorHooks(t *testing.T) {
	t.Cleanup(ClearErrorHooks)

	var seen []string
	AddErrorHook(func(ee *EnhancedError) {
		seen = append(seen, ee.GetComponent()+"/"+ee.GetCategory())
	})
	AddErrorHook(nil)

	New(NewStd("x")).Component("emitter").Category(CategoryRPC).Build()
	ValidationError("y")

	assert.Equal(t, []string{"emitter/rpc", "unknown/validation"}, seen)

	ClearErrorHooks()
	New(NewStd("z")).Build()
	assert.Len(t, seen, 2)
}
