package tarlz

import (
	"errors"
	"io"
)

// archiveReader is the capability the tar layer needs from an archive
// source. The serial reader streams the whole archive; the indexed
// reader is limited to one lzip member and reports its end.
type archiveReader interface {
	// read fills p completely or fails.
	read(p []byte) error
	// skip discards n bytes of file data.
	skip(n int64) error
	// atMemberEnd reports whether the reader is at the end of its
	// lzip member. The serial reader never is until EOF.
	atMemberEnd() bool
}

var errUnexpectedArchiveEOF = errors.New("tarlz: archive ends unexpectedly")

// serialReader adapts an io.Reader containing an uncompressed tar
// stream, typically the output of an lzip reader.
type serialReader struct {
	r   io.Reader
	eof bool
}

func newSerialReader(r io.Reader) *serialReader {
	return &serialReader{r: r}
}

func (sr *serialReader) read(p []byte) error {
	_, err := io.ReadFull(sr.r, p)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		sr.eof = true
		return errUnexpectedArchiveEOF
	}
	return err
}

func (sr *serialReader) skip(n int64) error {
	_, err := io.CopyN(io.Discard, sr.r, n)
	if err == io.EOF {
		sr.eof = true
		return errUnexpectedArchiveEOF
	}
	return err
}

func (sr *serialReader) atMemberEnd() bool { return sr.eof }

// memberReader adapts the decoded stream of a single lzip member.
// The stream is produced by a decode goroutine through a pipe; Close
// aborts the decoder.
type memberReader struct {
	pr   *io.PipeReader
	pos  int64
	size int64
}

func newMemberReader(pr *io.PipeReader, dataSize int64) *memberReader {
	return &memberReader{pr: pr, size: dataSize}
}

func (mr *memberReader) read(p []byte) error {
	n, err := io.ReadFull(mr.pr, p)
	mr.pos += int64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errUnexpectedArchiveEOF
	}
	return err
}

func (mr *memberReader) skip(n int64) error {
	k, err := io.CopyN(io.Discard, mr.pr, n)
	mr.pos += k
	if err == io.EOF {
		return errUnexpectedArchiveEOF
	}
	return err
}

func (mr *memberReader) atMemberEnd() bool { return mr.pos >= mr.size }

func (mr *memberReader) Close() error { return mr.pr.Close() }
