package gbdt

// Node is one tree node. Leaves have Feature == -1.
// Rows with x[Feature] < Threshold go Left, others Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value"` // scaled weight; for internal nodes, the weight it would have as a leaf
	Gain      float64 `json:"gain,omitempty"`
	Cover     float64 `json:"cover"` // hessian sum of training rows reaching the node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a regression tree over margins. Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// leaf returns the index of the leaf that row falls into.
func (t *Tree) leaf(row []float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Predict returns the tree's margin contribution for row.
func (t *Tree) Predict(row []float64) float64 {
	return t.Nodes[t.leaf(row)].Value
}

// Path returns node indices from root to the leaf for row.
func (t *Tree) Path(row []float64) []int {
	path := []int{0}
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		path = append(path, i)
	}
	return path
}

// Depth returns the maximum root-to-leaf edge count.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	return walk(0, 0)
}
