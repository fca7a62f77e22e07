package lzip

import (
	"errors"
	"fmt"

	"github.com/ulikunitz/lzip/lzma"
)

// TrailerError reports the mismatches found while verifying a member
// trailer. All three checks are carried out so that every mismatch
// can be reported separately.
type TrailerError struct {
	Truncated bool

	CRCMismatch    bool
	StoredCRC      uint32
	ComputedCRC    uint32
	SizeMismatch   bool
	StoredSize     uint64
	ComputedSize   uint64
	MemberMismatch bool
	StoredMember   uint64
	ComputedMember uint64
}

func (err *TrailerError) Error() string {
	switch {
	case err.CRCMismatch:
		return fmt.Sprintf(
			"lzip: CRC mismatch; stored %08X, computed %08X",
			err.StoredCRC, err.ComputedCRC)
	case err.SizeMismatch:
		return fmt.Sprintf(
			"lzip: data size mismatch; stored %d, computed %d",
			err.StoredSize, err.ComputedSize)
	case err.MemberMismatch:
		return fmt.Sprintf(
			"lzip: member size mismatch; stored %d, computed %d",
			err.StoredMember, err.ComputedMember)
	case err.Truncated:
		return "lzip: member trailer is truncated"
	}
	return "lzip: trailer error"
}

// errInternal marks conditions that indicate a bug in this module
// rather than bad input.
var errInternal = errors.New("lzip: internal error")

// Exit statuses in the tradition of the lzip tools: 1 for
// environmental problems, 2 for corrupt or invalid input, 3 for an
// internal consistency failure.
const (
	StatusOK       = 0
	StatusEnv      = 1
	StatusData     = 2
	StatusInternal = 3
)

// ExitStatus classifies an error into the exit statuses of the lzip
// tools.
func ExitStatus(err error) int {
	if err == nil {
		return StatusOK
	}
	var terr *TrailerError
	switch {
	case errors.As(err, &terr):
		return StatusInternal
	case errors.Is(err, errInternal):
		return StatusInternal
	case errors.Is(err, lzma.ErrDecoder),
		errors.Is(err, lzma.ErrUnexpectedEOF),
		errors.Is(err, lzma.ErrUnknownMarker),
		errors.Is(err, lzma.ErrNonzeroFirstByte),
		errors.Is(err, errHeaderMagic),
		errors.Is(err, errDictSize):
		return StatusData
	}
	var verr *headerVersionError
	if errors.As(err, &verr) {
		return StatusData
	}
	var ierr *IndexError
	if errors.As(err, &ierr) {
		return ierr.Status
	}
	return StatusEnv
}
