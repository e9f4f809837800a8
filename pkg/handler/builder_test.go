package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBuilder(t *testing.T) {
	RegisterBuilder("test-builder", func(options map[string]any) (Handler, error) {
		return &fakeInfoHandler{info: map[string]any{"name": "t", "version": "1.0.0"}}, nil
	})
	t.Cleanup(func() { unregisterBuilder("test-builder") })

	b, err := LookupBuilder("test-builder")
	require.NoError(t, err)

	h, err := b(nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", h.Name())

	assert.Contains(t, BuilderNames(), "test-builder")
}

func TestRegisterBuilder_Duplicate(t *testing.T) {
	b := func(options map[string]any) (Handler, error) { return nil, nil }

	RegisterBuilder("dup-builder", b)
	t.Cleanup(func() { unregisterBuilder("dup-builder") })

	assert.Panics(t, func() { RegisterBuilder("dup-builder", b) })
}

func TestRegisterBuilder_Nil(t *testing.T) {
	assert.Panics(t, func() { RegisterBuilder("nil-builder", nil) })
}

func TestLookupBuilder_Unknown(t *testing.T) {
	_, err := LookupBuilder("does-not-exist")
	assert.Error(t, err)
}
