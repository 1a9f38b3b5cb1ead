package playlist

import (
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/errors"
)

// Iterator is a cursor over playable items.
//
// Next and Prev report whether the move succeeded. On failure the current
// item is unchanged. Item fails with ErrNotPositioned until the cursor
// has been positioned at least once.
type Iterator interface {
	Next() bool
	Prev() bool
	Item() (Item, error)
}

// ModalIterator is an Iterator whose navigation mode can change while it
// is positioned.
type ModalIterator interface {
	Iterator
	Mode() NavigationMode
	SetMode(mode NavigationMode)
}

// ErrNotPositioned marks a read of the current item before positioning.
// It is a logic fault: errors.HasAssertionFailure reports true for it.
var ErrNotPositioned = errors.New("iterator not positioned")

// NavigationMode decides what happens at the ends of the list.
type NavigationMode int

const (
	// Ordered walks the list in order and fails at both ends.
	Ordered NavigationMode = iota
	// Looped walks the list in order and wraps around at both ends.
	Looped
	// Shuffle walks a seeded permutation and fails at both ends.
	Shuffle
)

// String returns the mode name as used in configuration.
func (m NavigationMode) String() string {
	switch m {
	case Ordered:
		return "ordered"
	case Looped:
		return "looped"
	case Shuffle:
		return "shuffle"
	default:
		return "unknown"
	}
}

// ParseNavigationMode parses a mode name.
func ParseNavigationMode(s string) (NavigationMode, error) {
	switch s {
	case "", "ordered":
		return Ordered, nil
	case "looped":
		return Looped, nil
	case "shuffle":
		return Shuffle, nil
	default:
		return Ordered, errors.Newf("unknown sequence mode %q", s)
	}
}

// ListIterator iterates over a fixed slice of items. It is positioned on
// the first item (in navigation order) when the slice is not empty.
type ListIterator struct {
	mu    sync.Mutex
	items []Item
	order []int // navigation order, indexes into items
	pos   int   // index into order; -1 when not positioned
	mode  NavigationMode
	seed  uint64
}

var _ ModalIterator = (*ListIterator)(nil)

// NewListIterator returns an iterator over items. seed drives the Shuffle
// permutation and is ignored otherwise.
func NewListIterator(items []Item, mode NavigationMode, seed uint64) *ListIterator {
	it := &ListIterator{
		items: append([]Item(nil), items...),
		mode:  mode,
		seed:  seed,
		pos:   -1,
	}
	it.order = navigationOrder(len(items), mode, seed)
	if len(items) > 0 {
		it.pos = 0
	}
	return it
}

func navigationOrder(n int, mode NavigationMode, seed uint64) []int {
	if mode == Shuffle {
		return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n) //nolint:gosec // not security sensitive
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// SetMode switches the navigation mode. The current item stays current;
// the following moves walk the new order from there.
func (it *ListIterator) SetMode(mode NavigationMode) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if mode == it.mode {
		return
	}
	current := -1
	if it.pos >= 0 {
		current = it.order[it.pos]
	}
	it.mode = mode
	it.order = navigationOrder(len(it.items), mode, it.seed)
	for p, i := range it.order {
		if i == current {
			it.pos = p
			break
		}
	}
}

// Next moves to the following item.
func (it *ListIterator) Next() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos < 0 {
		return false
	}
	if it.pos+1 < len(it.order) {
		it.pos++
		return true
	}
	if it.mode == Looped {
		it.pos = 0
		return true
	}
	return false
}

// Prev moves to the preceding item.
func (it *ListIterator) Prev() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos < 0 {
		return false
	}
	if it.pos > 0 {
		it.pos--
		return true
	}
	if it.mode == Looped {
		it.pos = len(it.order) - 1
		return true
	}
	return false
}

// Item returns the current item.
func (it *ListIterator) Item() (Item, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos < 0 {
		return Item{}, errors.Mark(
			errors.AssertionFailedf("current item requested before positioning"),
			ErrNotPositioned,
		)
	}
	return it.items[it.order[it.pos]], nil
}

// JumpTo positions the cursor on items[index]. It returns false when index
// is out of range, leaving the cursor unchanged.
func (it *ListIterator) JumpTo(index int) bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if index < 0 || index >= len(it.items) {
		return false
	}
	for p, i := range it.order {
		if i == index {
			it.pos = p
			return true
		}
	}
	return false
}

// Index returns the list index of the current item, or -1.
func (it *ListIterator) Index() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos < 0 {
		return -1
	}
	return it.order[it.pos]
}

// Len returns the number of items.
func (it *ListIterator) Len() int {
	return len(it.items)
}

// Mode returns the navigation mode.
func (it *ListIterator) Mode() NavigationMode {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.mode
}
