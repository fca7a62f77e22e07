package tarlz

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ulikunitz/lzip"
)

// newLzipStream decompresses an archive in memory and returns a
// reader for the tar stream.
func newLzipStream(t *testing.T, z []byte) io.Reader {
	t.Helper()
	lr, err := lzip.NewReader(bytes.NewReader(z))
	require.NoError(t, err)
	return lr
}

// makeTree creates a small directory tree for archive tests and
// returns its root and the relative paths of the regular files.
func makeTree(t *testing.T) (root string, files []string) {
	t.Helper()
	root = t.TempDir()
	rnd := rand.New(rand.NewSource(61))
	layout := map[string]int{
		"a.txt":           100,
		"b/large.bin":     70000,
		"b/small.bin":     10,
		"c/d/deep.txt":    2000,
		"c/empty.txt":     0,
		"z" + strings.Repeat("x", 120) + "/long.txt": 333,
	}
	for name, size := range layout {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		data := make([]byte, size)
		rnd.Read(data)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		files = append(files, name)
	}
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link")))
	sort.Strings(files)
	return root, files
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestCreateListRoundTrip(t *testing.T) {
	root, files := makeTree(t)
	chdir(t, root)

	var buf bytes.Buffer
	err := Create(&buf, []string{"."}, CreateConfig{Workers: 2})
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "test.tar.lz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))

	var list bytes.Buffer
	require.NoError(t, ListFile(&list, archive, DecodeConfig{Workers: 2}))
	listed := strings.Fields(list.String())
	for _, f := range files {
		require.Contains(t, listed, f)
	}
	require.Contains(t, listed, "link")
}

func TestCreateExtractRoundTrip(t *testing.T) {
	root, files := makeTree(t)
	chdir(t, root)

	var buf bytes.Buffer
	err := Create(&buf, []string{"."}, CreateConfig{
		Solidity: NoSolid,
		Workers:  4,
	})
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "test.tar.lz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))

	out := t.TempDir()
	require.NoError(t, ExtractFile(out, archive,
		DecodeConfig{Workers: 4}))

	for _, f := range files {
		want, err := os.ReadFile(filepath.Join(root, f))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(out, f))
		require.NoError(t, err, "file %s", f)
		require.True(t, bytes.Equal(want, got),
			"file %s differs", f)
	}
	target, err := os.Readlink(filepath.Join(out, "link"))
	require.NoError(t, err)
	require.Equal(t, "a.txt", target)
}

func TestParallelEqualsSerial(t *testing.T) {
	root, _ := makeTree(t)
	chdir(t, root)

	for _, solidity := range []Solidity{NoSolid, DSolid} {
		var serial bytes.Buffer
		err := Create(&serial, []string{"."}, CreateConfig{
			Solidity: solidity,
			Workers:  1,
		})
		require.NoError(t, err, "solidity %s", solidity)

		for _, workers := range []int{2, 4, 8} {
			var parallel bytes.Buffer
			err = Create(&parallel, []string{"."}, CreateConfig{
				Solidity: solidity,
				Workers:  workers,
			})
			require.NoError(t, err)
			require.True(t,
				bytes.Equal(serial.Bytes(), parallel.Bytes()),
				"solidity %s workers %d differs from serial",
				solidity, workers)
		}
	}
}

func TestSerialStreamDecode(t *testing.T) {
	root, files := makeTree(t)
	chdir(t, root)

	var buf bytes.Buffer
	require.NoError(t, Create(&buf, []string{"."},
		CreateConfig{Solidity: Solid}))

	// decode the archive through the serial stream reader
	lr := newLzipStream(t, buf.Bytes())
	var list bytes.Buffer
	require.NoError(t, List(&list, lr, DecodeConfig{}))
	listed := strings.Fields(list.String())
	for _, f := range files {
		require.Contains(t, listed, f)
	}
}
