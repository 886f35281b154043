package approx

import (
	"container/heap"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// node is a training point stored in the kd-tree. idx points back into the
// training set.
type node struct {
	coords []float64
	idx    int
}

// Compare implements the kdtree.Comparable interface
func (p node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	return p.coords[d] - q.coords[d]
}

func (p node) Dims() int { return len(p.coords) }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p node) Distance(c kdtree.Comparable) float64 {
	q := c.(node)
	s := 0.0
	for i := range p.coords {
		t := p.coords[i] - q.coords[i]
		s += t * t
	}
	return s
}

type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p nodes) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{nodes: p, Dim: d}, kdtree.MedianOfRandoms(plane{nodes: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for nodes
type plane struct {
	nodes
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.nodes[i].coords[p.Dim] < p.nodes[j].coords[p.Dim]
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{nodes: p.nodes[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i]
}

// neighbour is one search hit.
type neighbour struct {
	idx  int
	dist float64
}

// index is a kd-tree over the training points.
type index struct {
	tree *kdtree.Tree
	size int
}

func newIndex(points [][]float64) *index {
	ns := make(nodes, len(points))
	for i, p := range points {
		ns[i] = node{coords: p, idx: i}
	}
	return &index{tree: kdtree.New(ns, false), size: len(points)}
}

// nearest returns up to k neighbours of q ordered by ascending distance.
func (ix *index) nearest(q []float64, k int) []neighbour {
	if ix.size == 0 || k <= 0 {
		return nil
	}
	if k > ix.size {
		k = ix.size
	}

	keeper := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keeper, node{coords: q, idx: -1})

	res := make([]neighbour, 0, k)
	for keeper.Len() > 0 {
		item := heap.Pop(keeper).(kdtree.ComparableDist)
		// the keeper starts with an unfilled sentinel
		if item.Comparable == nil {
			continue
		}
		res = append(res, neighbour{idx: item.Comparable.(node).idx, dist: math.Sqrt(item.Dist)})
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].dist == res[j].dist {
			return res[i].idx < res[j].idx
		}
		return res[i].dist < res[j].dist
	})
	return res
}
