//go:build !windows

package wallpaper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSetter_AppendsPath(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "applied")

	script := filepath.Join(dir, "set-bg.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$1 $2\" > "+out+"\n"), 0755))

	s, err := New(script + " --fill")
	require.NoError(t, err)

	frame := filepath.Join(dir, "00.jpg")
	require.NoError(t, s.Apply(context.Background(), frame))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "--fill "+frame+"\n", string(got))
}

func TestCommandSetter_Failure(t *testing.T) {
	s, err := NewCommandSetter("false")
	require.NoError(t, err)

	err = s.Apply(context.Background(), "/tmp/00.jpg")

	var wpErr *Error
	require.ErrorAs(t, err, &wpErr)
	assert.Equal(t, "/tmp/00.jpg", wpErr.Path)
	assert.Contains(t, err.Error(), "failed to set wallpaper to /tmp/00.jpg")
}

func TestNewCommandSetter_Empty(t *testing.T) {
	_, err := NewCommandSetter("   ")
	assert.Error(t, err)
}

func TestSetterFunc(t *testing.T) {
	var got string

	s := SetterFunc(func(_ context.Context, path string) error {
		got = path

		return errors.New("nope")
	})

	err := s.Apply(context.Background(), "a.jpg")
	assert.EqualError(t, err, "nope")
	assert.Equal(t, "a.jpg", got)
}
