package pta

import "golang.org/x/tools/container/intsets"

// PointsToSet is a set of abstract objects. Sets held by pointers only grow.
type PointsToSet struct {
	set  intsets.Sparse
	objs *objectManager
}

func newPointsToSet(objs *objectManager, init ...*Obj) *PointsToSet {
	pts := &PointsToSet{objs: objs}
	for _, o := range init {
		pts.set.Insert(o.ID)
	}
	return pts
}

// Contains reports whether o is in the set.
func (pts *PointsToSet) Contains(o *Obj) bool { return pts.set.Has(o.ID) }

func (pts *PointsToSet) Len() int { return pts.set.Len() }

func (pts *PointsToSet) IsEmpty() bool { return pts.set.IsEmpty() }

// Objects returns the objects of the set in ascending ID order.
func (pts *PointsToSet) Objects() []*Obj {
	var space [16]int
	ids := pts.set.AppendTo(space[:0])
	res := make([]*Obj, len(ids))
	for i, id := range ids {
		res[i] = pts.objs.get(id)
	}
	return res
}

// SubsetOf reports whether every object of pts is also in other.
func (pts *PointsToSet) SubsetOf(other *PointsToSet) bool {
	return pts.set.SubsetOf(&other.set)
}

func (pts *PointsToSet) String() string { return pts.set.String() }

func (pts *PointsToSet) add(o *Obj) bool { return pts.set.Insert(o.ID) }

// addAll adds the objects of other to pts and returns the objects that
// were not already present.
func (pts *PointsToSet) addAll(other *PointsToSet) *PointsToSet {
	diff := &PointsToSet{objs: pts.objs}
	diff.set.Difference(&other.set, &pts.set)
	pts.set.UnionWith(&diff.set)
	return diff
}

func (pts *PointsToSet) clone() *PointsToSet {
	c := &PointsToSet{objs: pts.objs}
	c.set.Copy(&pts.set)
	return c
}

// filter returns the subset of pts satisfying keep.
func (pts *PointsToSet) filter(keep func(*Obj) bool) *PointsToSet {
	res := &PointsToSet{objs: pts.objs}
	for _, o := range pts.Objects() {
		if keep(o) {
			res.set.Insert(o.ID)
		}
	}
	return res
}
