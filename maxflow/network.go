// Package maxflow computes maximum flow / minimum cut on graphs with two
// terminals using the Boykov–Kolmogorov search tree algorithm.
//
// Nodes and arcs live in flat arrays indexed by int32 so that pixel grids
// can address nodes by row-major offset. Arcs are created in sister pairs:
// the reverse of arc a is a^1. Terminal links are not stored as arcs; each
// node keeps a single residual t-capacity whose sign says which terminal it
// is connected to.
//
// Typical use:
//
//	n := maxflow.New(w*h, 4*w*h)
//	n.AddEdge(p, q, c, c)
//	n.AddTWeights(p, source, sink)
//	flow := n.MaxFlow()
//	side := n.Segment(p)
package maxflow

import "fmt"

// Segment is the side of the minimum cut a node ends up on.
type Segment uint8

const (
	// SourceSide nodes are reachable from the source in the residual graph.
	SourceSide Segment = iota
	// SinkSide is every other node.
	SinkSide
)

func (s Segment) String() string {
	if s == SourceSide {
		return "source"
	}
	return "sink"
}

const (
	none     int32 = -1 // no arc / not queued / free node
	terminal int32 = -2 // parent is the terminal itself
	orphan   int32 = -3 // lost its parent during augmentation
)

// Network is a flow network under construction or solved.
type Network struct {
	// per node
	first   []int32   // first outgoing arc
	parent  []int32   // tree parent arc, none, terminal or orphan
	next    []int32   // active queue link
	ts      []int32   // timestamp of the last distance check
	dist    []int32   // distance to the terminal along tree arcs
	isSink  []bool    // which tree the node belongs to
	trCap   []float64 // residual t-capacity: >0 to source, <0 to sink
	srcCap  []float64 // capacities as added, for cut evaluation
	sinkCap []float64

	// per arc
	head    []int32
	nextArc []int32
	rCap    []float64
	cap0    []float64

	flow       float64
	time       int32
	queueFirst int32
	queueLast  int32
	orphans    []int32
}

// New allocates a network with the given node count. arcHint is the
// expected number of directed arcs (two per AddEdge call).
func New(nodes, arcHint int) *Network {
	n := &Network{
		first:      make([]int32, nodes),
		parent:     make([]int32, nodes),
		next:       make([]int32, nodes),
		ts:         make([]int32, nodes),
		dist:       make([]int32, nodes),
		isSink:     make([]bool, nodes),
		trCap:      make([]float64, nodes),
		srcCap:     make([]float64, nodes),
		sinkCap:    make([]float64, nodes),
		head:       make([]int32, 0, arcHint),
		nextArc:    make([]int32, 0, arcHint),
		rCap:       make([]float64, 0, arcHint),
		cap0:       make([]float64, 0, arcHint),
		queueFirst: none,
		queueLast:  none,
	}
	for i := range n.first {
		n.first[i] = none
		n.next[i] = none
	}
	return n
}

// Nodes returns the number of non-terminal nodes.
func (n *Network) Nodes() int {
	return len(n.first)
}

// Arcs returns the number of directed arcs.
func (n *Network) Arcs() int {
	return len(n.head)
}

// Flow returns the flow accumulated so far.
func (n *Network) Flow() float64 {
	return n.flow
}

// AddEdge adds arc u->v with the given capacity and arc v->u with capacity
// reverse.
func (n *Network) AddEdge(u, v int, capacity, reverse float64) {
	if u == v || u < 0 || v < 0 || u >= len(n.first) || v >= len(n.first) {
		panic(fmt.Sprintf("maxflow: invalid edge %d -> %d", u, v))
	}
	if capacity < 0 || reverse < 0 {
		panic(fmt.Sprintf("maxflow: negative capacity on edge %d -> %d", u, v))
	}
	a := int32(len(n.head))
	n.head = append(n.head, int32(v), int32(u))
	n.nextArc = append(n.nextArc, n.first[u], n.first[v])
	n.first[u] = a
	n.first[v] = a + 1
	n.rCap = append(n.rCap, capacity, reverse)
	n.cap0 = append(n.cap0, capacity, reverse)
}

// AddTWeights adds capacity source on source->u and sink on u->sink. Calls
// accumulate. Only the difference between the two matters for the cut; the
// common part is pushed as flow immediately.
func (n *Network) AddTWeights(u int, source, sink float64) {
	n.srcCap[u] += source
	n.sinkCap[u] += sink
	if delta := n.trCap[u]; delta > 0 {
		source += delta
	} else {
		sink -= delta
	}
	n.flow += min(source, sink)
	n.trCap[u] = source - sink
}

// Segment reports the side of the cut node u is on after MaxFlow.
func (n *Network) Segment(u int) Segment {
	if n.parent[u] != none && !n.isSink[u] {
		return SourceSide
	}
	return SinkSide
}

// CutCapacity sums the original capacities of all links leaving the source
// side: t-links of source-side nodes to the sink, t-links from the source
// to sink-side nodes, and arcs crossing from source side to sink side. After
// MaxFlow it equals the flow value.
func (n *Network) CutCapacity() float64 {
	total := 0.0
	for u := range n.first {
		if n.Segment(u) != SourceSide {
			total += n.srcCap[u]
			continue
		}
		total += n.sinkCap[u]
		for a := n.first[u]; a != none; a = n.nextArc[a] {
			if n.Segment(int(n.head[a])) == SinkSide {
				total += n.cap0[a]
			}
		}
	}
	return total
}
