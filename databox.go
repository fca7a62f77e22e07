package lzip

import (
	"errors"
	"os"
)

// BoxOverhead is the number of framing bytes a databox adds: the
// 8-byte magic and the 8-byte size field.
const BoxOverhead = 16

// WrapBox returns the databox framing of data: the magic, the data
// and the total box size as 64-bit little-endian value.
func WrapBox(data []byte) []byte {
	box := make([]byte, 0, len(data)+BoxOverhead)
	box = append(box, boxMagic...)
	box = append(box, data...)
	var size [8]byte
	putUint64LE(size[:], uint64(len(data)+BoxOverhead))
	return append(box, size[:]...)
}

// UnwrapBox removes the databox framing. It returns an error if data
// is not a single well-formed box.
func UnwrapBox(data []byte) ([]byte, error) {
	if len(data) < BoxOverhead || string(data[:8]) != boxMagic {
		return nil, errors.New("lzip: trailing data is not boxed")
	}
	size := getUint64LE(data[len(data)-8:])
	if size != uint64(len(data)) {
		return nil, errors.New("lzip: bad databox size")
	}
	return data[8 : len(data)-8], nil
}

// AppendTData appends data after the end of the last lzip member of
// the file, optionally wrapped in a databox. The file timestamps are
// preserved.
func AppendTData(path string, data []byte, boxed bool) error {
	times, err := fileTimes(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	if boxed {
		data = WrapBox(data)
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return restoreTimes(path, times)
}
