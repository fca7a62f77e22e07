package tarlz

// Solidity selects how tar members are grouped into lzip members.
type Solidity int

const (
	// NoSolid compresses each file into its own lzip member.
	NoSolid Solidity = iota
	// BSolid starts a new lzip member when the accumulated data
	// size crosses the target size.
	BSolid
	// DSolid compresses each top-level directory into its own lzip
	// member.
	DSolid
	// ASolid appends all files to a single lzip member that is only
	// finished at the end of the archive.
	ASolid
	// Solid compresses the whole archive into a single lzip member,
	// including the end-of-archive blocks.
	Solid
)

func (s Solidity) String() string {
	switch s {
	case NoSolid:
		return "no_solid"
	case BSolid:
		return "bsolid"
	case DSolid:
		return "dsolid"
	case ASolid:
		return "asolid"
	case Solid:
		return "solid"
	}
	return "unknown"
}

// minDataSize is the smallest sensible target for bsolid grouping.
const minDataSize = 2 * BlockSize

// blockFull implements the bsolid policy: it reports whether a new
// member must be started before a tar member of the given size is
// added and updates the accumulated data size.
func blockFull(extendedSize int64, fileSize, targetSize int64,
	partialDataSize *int64) bool {
	memberSize := extendedSize + BlockSize + roundUp(fileSize)
	if *partialDataSize >= targetSize ||
		(*partialDataSize >= minDataSize &&
			*partialDataSize+memberSize/2 > targetSize) {
		*partialDataSize = memberSize
		return true
	}
	*partialDataSize += memberSize
	return false
}
