package lzip

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/ulikunitz/zdata"
)

// TestSilesiaRoundTrip compresses a slice of the Silesia corpus and
// decompresses it again.
func TestSilesiaRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping corpus test in short mode")
	}
	var name string
	err := fs.WalkDir(zdata.Silesia, ".",
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if name == "" && !d.IsDir() {
				name = path
			}
			return nil
		})
	if err != nil {
		t.Fatalf("WalkDir error %s", err)
	}
	if name == "" {
		t.Skip("no corpus file found")
	}
	data, err := fs.ReadFile(zdata.Silesia, name)
	if err != nil {
		t.Fatalf("ReadFile(%q) error %s", name, err)
	}
	if len(data) > 1<<20 {
		data = data[:1<<20]
	}
	z := compress(t, data, WriterConfig{
		Level: 3, SizeHint: int64(len(data))})
	out := decompress(t, z)
	if !bytes.Equal(out, data) {
		t.Fatalf("%s: round trip mismatch", name)
	}
	t.Logf("%s: %d bytes compressed to %d bytes", name, len(data),
		len(z))
}
