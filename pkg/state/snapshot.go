package state

import "fmt"

// Entry is one key/value pair of a saved state map. Entries keep the
// insertion order of the live map so identical state saves identically.
type Entry struct {
	Key   string
	Value any
}

// Full is the snapshot of a Helper saved before its baseline was established.
type Full struct {
	Entries []Entry
}

// Delta is the sparse snapshot of a Helper saved after its baseline was
// established. Deleted lists keys that were explicitly removed since the
// baseline, which an absent entry alone cannot express.
type Delta struct {
	Entries []Entry
	Deleted []string
}

// Nested wraps the snapshot of a Holder stored as a value under a key.
type Nested struct {
	Kind  string
	State any
}

// ShapeError is returned when a snapshot does not match the object it is
// restored into.
type ShapeError struct {
	Want string
	Got  string
}

func (e ShapeError) Error() string {
	return fmt.Sprintf("state: cannot restore %s snapshot into %s", e.Got, e.Want)
}

// NewShapeError describes a mismatch between the expected snapshot shape and
// the value that was supplied.
func NewShapeError(want string, got any) ShapeError {
	return ShapeError{Want: want, Got: fmt.Sprintf("%T", got)}
}
