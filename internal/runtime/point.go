package runtime

import (
	"github.com/dekarrin/rezi"
)

// Point is a resumable position within a program's execution, nested to
// mirror the block tree: each level names which child it was resumed
// into. The real system gives every block kind its own Point shape (a
// sequence's Point is an index, a state-wrapped block's Point just
// wraps its child's); this module uses one generic recursive shape
// instead of a per-kind type hierarchy, trading some precision for a
// single Encode/Decode pair everything can share.
type Point struct {
	// Index selects a child within a sequence-like block; -1 when the
	// owning block kind has no notion of child selection (e.g. a leaf
	// segment).
	Index int
	Child *Point
}

// EncodeBinary serializes p for storage in a run record, so a halted or
// crashed run can be resumed from exactly where it left off.
func EncodeBinary(p *Point) []byte {
	return rezi.EncBinary(p)
}

// DecodeBinary reconstructs a Point previously produced by EncodeBinary.
func DecodeBinary(data []byte) (*Point, error) {
	p := &Point{}
	n, err := rezi.DecBinary(data, p)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, errShortRead(n, len(data))
	}
	return p, nil
}

type shortReadError struct {
	consumed, total int
}

func (e *shortReadError) Error() string {
	return "point decode: consumed fewer bytes than provided"
}

func errShortRead(consumed, total int) error {
	return &shortReadError{consumed: consumed, total: total}
}
