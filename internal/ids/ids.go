package ids

import "errors"

// Handle identifies one open namespace session.
type Handle uint32

var ErrHandlesExhausted = errors.New("ids: handle space exhausted")

// HandleCounter mints session handles starting at 1. It is not safe for
// concurrent use; the owner serializes calls.
type HandleCounter struct {
	next Handle
}

func NewHandleCounter() *HandleCounter {
	return &HandleCounter{next: 1}
}

// Next returns the next unused handle. Values are never reissued, so once
// the counter reaches zero again it refuses to mint more.
func (g *HandleCounter) Next() (Handle, error) {
	if g.next == 0 {
		return 0, ErrHandlesExhausted
	}
	h := g.next
	g.next++
	return h, nil
}
