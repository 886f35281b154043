package posterior

import (
	"github.com/google/btree"
)

// Item is one weighted observation. seq breaks ties between equal values so
// that repeated observations are all kept.
type Item struct {
	X      float64
	Weight float64
	seq    uint64
}

func (i Item) Less(than btree.Item) bool {
	o := than.(Item)
	if i.X != o.X {
		return i.X < o.X
	}
	return i.seq < o.seq
}

// SampleSet keeps observations ordered by value.
type SampleSet struct {
	tree   *btree.BTree
	next   uint64
	totalW float64
}

func NewSampleSet(degree int) *SampleSet {
	return &SampleSet{
		tree: btree.New(degree),
	}
}

func (s *SampleSet) Put(x, weight float64) {
	s.tree.ReplaceOrInsert(Item{X: x, Weight: weight, seq: s.next})
	s.next++
	s.totalW += weight
}

func (s *SampleSet) Count() int {
	return s.tree.Len()
}

func (s *SampleSet) TotalWeight() float64 {
	return s.totalW
}

func (s *SampleSet) Min() (float64, bool) {
	it := s.tree.Min()
	if it == nil {
		return 0, false
	}
	return it.(Item).X, true
}

func (s *SampleSet) Max() (float64, bool) {
	it := s.tree.Max()
	if it == nil {
		return 0, false
	}
	return it.(Item).X, true
}

// Iterator visits observations in ascending order until fn returns false.
func (s *SampleSet) Iterator(fn func(x, weight float64) bool) {
	s.tree.Ascend(func(i btree.Item) bool {
		item := i.(Item)
		return fn(item.X, item.Weight)
	})
}

// Sorted returns values and weights in ascending order of value.
func (s *SampleSet) Sorted() (xs, ws []float64) {
	xs = make([]float64, 0, s.tree.Len())
	ws = make([]float64, 0, s.tree.Len())
	s.Iterator(func(x, w float64) bool {
		xs = append(xs, x)
		ws = append(ws, w)
		return true
	})
	return xs, ws
}
