package lzma

import "errors"

// Decoding errors corresponding to the member decoder status codes.
// I/O errors of the underlying reader or writer are returned
// unwrapped.
var (
	// ErrDecoder reports a corrupt stream: a match distance that is
	// out of range or refers to bytes not yet produced.
	ErrDecoder = errors.New("lzma: decoder error")

	// ErrUnexpectedEOF reports a stream that ended before the
	// end-of-stream marker.
	ErrUnexpectedEOF = errors.New("lzma: unexpected end of input")

	// ErrUnknownMarker reports a marker distance with an unsupported
	// length.
	ErrUnknownMarker = errors.New("lzma: unknown marker found")

	// ErrNonzeroFirstByte reports a stream whose first byte is not
	// zero.
	ErrNonzeroFirstByte = errors.New("lzma: nonzero first stream byte")
)
