package maxflow

import "math"

const infiniteDist = math.MaxInt32

// MaxFlow computes the maximum flow from source to sink and returns its
// value. Afterwards Segment reports the minimum cut.
func (n *Network) MaxFlow() float64 {
	n.initTrees()

	current := none
	for {
		i := current
		if i != none {
			n.next[i] = none
			if n.parent[i] == none {
				i = none
			}
		}
		if i == none {
			if i = n.nextActive(); i == none {
				break
			}
		}

		mid := n.grow(i)
		n.time++

		if mid == none {
			current = none
			continue
		}
		// Keep i marked active without queueing it; it is revisited first.
		n.next[i] = i
		current = i

		n.augment(mid)
		for k := 0; k < len(n.orphans); k++ {
			j := n.orphans[k]
			if n.isSink[j] {
				n.adoptSink(j)
			} else {
				n.adoptSource(j)
			}
		}
		n.orphans = n.orphans[:0]
	}
	return n.flow
}

func (n *Network) initTrees() {
	n.queueFirst, n.queueLast = none, none
	n.orphans = n.orphans[:0]
	n.time = 0
	for i := range n.first {
		u := int32(i)
		n.next[u] = none
		n.ts[u] = 0
		switch {
		case n.trCap[u] > 0:
			n.isSink[u] = false
			n.parent[u] = terminal
			n.dist[u] = 1
			n.setActive(u)
		case n.trCap[u] < 0:
			n.isSink[u] = true
			n.parent[u] = terminal
			n.dist[u] = 1
			n.setActive(u)
		default:
			n.parent[u] = none
		}
	}
}

// setActive appends i to the active queue unless it is already there. The
// last element links to itself.
func (n *Network) setActive(i int32) {
	if n.next[i] != none {
		return
	}
	if n.queueLast != none {
		n.next[n.queueLast] = i
	} else {
		n.queueFirst = i
	}
	n.queueLast = i
	n.next[i] = i
}

// nextActive pops the next active node still attached to a tree.
func (n *Network) nextActive() int32 {
	for {
		i := n.queueFirst
		if i == none {
			return none
		}
		if n.next[i] == i {
			n.queueFirst, n.queueLast = none, none
		} else {
			n.queueFirst = n.next[i]
		}
		n.next[i] = none
		if n.parent[i] != none {
			return i
		}
	}
}

// grow expands the tree of active node i into free neighbours. It returns
// the first arc found that leads from the source tree into the sink tree,
// or none.
func (n *Network) grow(i int32) int32 {
	sink := n.isSink[i]
	for a := n.first[i]; a != none; a = n.nextArc[a] {
		// Residual capacity in the direction flow would travel.
		c := n.rCap[a]
		if sink {
			c = n.rCap[a^1]
		}
		if c <= 0 {
			continue
		}
		j := n.head[a]
		switch {
		case n.parent[j] == none:
			n.isSink[j] = sink
			n.parent[j] = a ^ 1
			n.ts[j] = n.ts[i]
			n.dist[j] = n.dist[i] + 1
			n.setActive(j)
		case n.isSink[j] != sink:
			if sink {
				return a ^ 1
			}
			return a
		case n.ts[j] <= n.ts[i] && n.dist[j] > n.dist[i]:
			// Shorter path through i.
			n.parent[j] = a ^ 1
			n.ts[j] = n.ts[i]
			n.dist[j] = n.dist[i] + 1
		}
	}
	return none
}

// augment pushes the bottleneck capacity along the path through mid and
// orphans every node whose parent link saturates.
func (n *Network) augment(mid int32) {
	bottle := n.rCap[mid]

	i := n.head[mid^1]
	for a := n.parent[i]; a != terminal; a = n.parent[i] {
		bottle = min(bottle, n.rCap[a^1])
		i = n.head[a]
	}
	bottle = min(bottle, n.trCap[i])

	i = n.head[mid]
	for a := n.parent[i]; a != terminal; a = n.parent[i] {
		bottle = min(bottle, n.rCap[a])
		i = n.head[a]
	}
	bottle = min(bottle, -n.trCap[i])

	n.rCap[mid^1] += bottle
	n.rCap[mid] -= bottle

	i = n.head[mid^1]
	for a := n.parent[i]; a != terminal; a = n.parent[i] {
		n.rCap[a] += bottle
		n.rCap[a^1] -= bottle
		parent := n.head[a]
		if n.rCap[a^1] <= 0 {
			n.rCap[a^1] = 0
			n.makeOrphan(i)
		}
		i = parent
	}
	n.trCap[i] -= bottle
	if n.trCap[i] <= 0 {
		n.trCap[i] = 0
		n.makeOrphan(i)
	}

	i = n.head[mid]
	for a := n.parent[i]; a != terminal; a = n.parent[i] {
		n.rCap[a^1] += bottle
		n.rCap[a] -= bottle
		parent := n.head[a]
		if n.rCap[a] <= 0 {
			n.rCap[a] = 0
			n.makeOrphan(i)
		}
		i = parent
	}
	n.trCap[i] += bottle
	if n.trCap[i] >= 0 {
		n.trCap[i] = 0
		n.makeOrphan(i)
	}

	n.flow += bottle
}

func (n *Network) makeOrphan(i int32) {
	n.parent[i] = orphan
	n.orphans = append(n.orphans, i)
}

// originDist returns the distance from j to its terminal following parent
// arcs, or infiniteDist if the path ends in an orphan. Nodes on a valid path
// are stamped with the current time.
func (n *Network) originDist(j int32) int32 {
	d := int32(0)
	for jj := j; ; {
		if n.ts[jj] == n.time {
			d += n.dist[jj]
			break
		}
		a := n.parent[jj]
		d++
		if a == terminal {
			n.ts[jj] = n.time
			n.dist[jj] = 1
			break
		}
		if a == orphan {
			return infiniteDist
		}
		jj = n.head[a]
	}
	dd := d
	for jj := j; n.ts[jj] != n.time; jj = n.head[n.parent[jj]] {
		n.ts[jj] = n.time
		n.dist[jj] = dd
		dd--
	}
	return d
}

func (n *Network) adoptSource(i int32) {
	best, bestDist := none, int32(infiniteDist)
	for a := n.first[i]; a != none; a = n.nextArc[a] {
		if n.rCap[a^1] <= 0 {
			continue
		}
		j := n.head[a]
		if n.isSink[j] || n.parent[j] == none {
			continue
		}
		if d := n.originDist(j); d < bestDist {
			best, bestDist = a, d
		}
	}
	n.parent[i] = best
	if best != none {
		n.ts[i] = n.time
		n.dist[i] = bestDist + 1
		return
	}

	for a := n.first[i]; a != none; a = n.nextArc[a] {
		j := n.head[a]
		pa := n.parent[j]
		if n.isSink[j] || pa == none {
			continue
		}
		if n.rCap[a^1] > 0 {
			n.setActive(j)
		}
		if pa != terminal && pa != orphan && n.head[pa] == i {
			n.makeOrphan(j)
		}
	}
}

func (n *Network) adoptSink(i int32) {
	best, bestDist := none, int32(infiniteDist)
	for a := n.first[i]; a != none; a = n.nextArc[a] {
		if n.rCap[a] <= 0 {
			continue
		}
		j := n.head[a]
		if !n.isSink[j] || n.parent[j] == none {
			continue
		}
		if d := n.originDist(j); d < bestDist {
			best, bestDist = a, d
		}
	}
	n.parent[i] = best
	if best != none {
		n.ts[i] = n.time
		n.dist[i] = bestDist + 1
		return
	}

	for a := n.first[i]; a != none; a = n.nextArc[a] {
		j := n.head[a]
		pa := n.parent[j]
		if !n.isSink[j] || pa == none {
			continue
		}
		if n.rCap[a] > 0 {
			n.setActive(j)
		}
		if pa != terminal && pa != orphan && n.head[pa] == i {
			n.makeOrphan(j)
		}
	}
}
