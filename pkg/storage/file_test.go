package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileforge/tileserv/pkg/errors"
	"github.com/tileforge/tileserv/pkg/testutil"
)

func TestFileContextMissingDirectory(t *testing.T) {
	_, err := newFileContext(filepath.Join(t.TempDir(), "absent"), "", testutil.TestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
}

func TestFileContextLocationMustBeDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := newFileContext(file, "", testutil.TestLogger(t))
	require.Error(t, err)
}

func TestFileContextRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slab.bin"), []byte("tile-data"), 0o600))

	fc, err := newFileContext(dir, "", testutil.TestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, KindFile, fc.Kind())
	assert.Equal(t, dir, fc.Location())

	data, err := fc.Read(context.Background(), "slab.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("tile-data"), data)
}

func TestFileContextReadNotFound(t *testing.T) {
	fc, err := newFileContext(t.TempDir(), "", testutil.TestLogger(t))
	require.NoError(t, err)

	_, err = fc.Read(context.Background(), "missing.bin")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestFileContextReadRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slab.bin"), []byte("0123456789"), 0o600))

	fc, err := newFileContext(dir, "", testutil.TestLogger(t))
	require.NoError(t, err)

	data, err := fc.ReadRange(context.Background(), "slab.bin", 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), data)
}

func TestFileContextReadRangePastEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slab.bin"), []byte{1, 2, 3, 4}, 0o600))

	fc, err := newFileContext(dir, "", testutil.TestLogger(t))
	require.NoError(t, err)

	// Requesting more bytes than the object holds must fail rather than
	// return a zero-padded buffer that would parse as an index of empty tiles.
	_, err = fc.ReadRange(context.Background(), "slab.bin", 0, 24)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))

	_, err = fc.ReadRange(context.Background(), "slab.bin", 2, 4)
	require.Error(t, err)
}

func TestFileContextRelativeRoot(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "layers", "osm"), 0o750))

	fc, err := newFileContext("layers/osm", base, testutil.TestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "layers", "osm"), fc.Location())
}
