package pta

import (
	"errors"

	"github.com/BarrensZeppelin/pta/internal/queue"
)

var ErrEmptyWorkList = errors.New("poll on empty work list")

// workList holds pending propagation obligations. Entries for the same
// pointer are merged while they wait.
type workList struct {
	queue   queue.Queue[Pointer]
	pending map[Pointer]*PointsToSet
}

func newWorkList() *workList {
	return &workList{pending: make(map[Pointer]*PointsToSet)}
}

func (wl *workList) addEntry(p Pointer, pts *PointsToSet) {
	if cur, found := wl.pending[p]; found {
		cur.set.UnionWith(&pts.set)
		return
	}
	wl.pending[p] = pts.clone()
	wl.queue.Push(p)
}

func (wl *workList) pollEntry() (Pointer, *PointsToSet) {
	if wl.queue.Empty() {
		panic(ErrEmptyWorkList)
	}
	p := wl.queue.Pop()
	pts := wl.pending[p]
	delete(wl.pending, p)
	return p, pts
}

func (wl *workList) isEmpty() bool { return wl.queue.Empty() }

func (wl *workList) len() int { return wl.queue.Len() }
