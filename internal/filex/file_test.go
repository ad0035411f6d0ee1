package filex

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) { return 0, errors.New("stream reset") }

func TestSpool_WritesContent(t *testing.T) {
	dir := t.TempDir()

	path, cleanup, err := Spool(dir, "part-*", strings.NewReader("payload"))
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	cleanup()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "cleanup should remove the file")
}

func TestSpool_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	_, cleanup, err := Spool(dir, "part-*", brokenReader{})
	require.Error(t, err)
	require.Nil(t, cleanup)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSpool_MissingDir(t *testing.T) {
	_, _, err := Spool(filepath.Join(t.TempDir(), "nope"), "part-*", strings.NewReader("x"))
	require.Error(t, err)
}

func TestSpoolDir(t *testing.T) {
	dir, cleanup, err := SpoolDir("filex-test-*")
	require.NoError(t, err)

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	_, _, err = Spool(dir, "a-*", strings.NewReader("a"))
	require.NoError(t, err)

	cleanup()
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err), "cleanup should remove the directory tree")
}
