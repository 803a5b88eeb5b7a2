package navmesh

import (
	"container/heap"
)

const (
	// ladderCostScale slows climbing relative to walking the same distance.
	ladderCostScale = 2.0
	// safestPenalty multiplies edge cost into areas that need precise movement
	// when the safest route is requested.
	safestPenalty = 3.0
)

// hop is one link of a searched chain: the area entered and how.
type hop struct {
	area   *Area
	how    TraverseType
	ladder *Ladder
}

type searchNode struct {
	area   *Area
	g      float64
	f      float64
	index  int
	parent *searchNode
	via    hop
}

type searchQueue []*searchNode

func (pq searchQueue) Len() int { return len(pq) }

func (pq searchQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }

func (pq searchQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *searchQueue) Push(x any) {
	n := len(*pq)
	item := x.(*searchNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *searchQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// neighbours expands every walkable and climbable link out of area.
func (m *Mesh) neighbours(area *Area, visit func(hop)) {
	for d := North; d < NumDirections; d++ {
		for _, id := range area.connect[d] {
			next := m.byID[id]
			how := d.traverse()
			if next.Center().Z()-area.Center().Z() > StepHeight && !area.Attributes.Has(AttrNoJump) {
				how = GoJump
			}
			visit(hop{area: next, how: how})
		}
	}
	for _, id := range area.laddersUp {
		ladder := m.ladders[id]
		visit(hop{area: m.byID[ladder.TopArea], how: GoLadderUp, ladder: ladder})
	}
	for _, id := range area.laddersDn {
		ladder := m.ladders[id]
		visit(hop{area: m.byID[ladder.BottomArea], how: GoLadderDown, ladder: ladder})
	}
}

func edgeCost(from *Area, step hop, route RouteType) float64 {
	var cost float64
	if step.ladder != nil {
		cost = float64(step.ladder.Length()) * ladderCostScale
	} else {
		cost = float64(Distance(from.Center(), step.area.Center()))
	}
	if route != RouteSafest {
		return cost
	}
	if step.how == GoJump || step.ladder != nil {
		cost *= safestPenalty
	}
	if step.area.Attributes.Has(AttrCrouch) || step.area.Attributes.Has(AttrPrecise) {
		cost *= safestPenalty
	}
	return cost
}

// search runs A* over the area graph from start to goal. The returned chain
// starts with start and ends with goal.
func (m *Mesh) search(start, goal *Area, goalPos Vector, route RouteType) ([]hop, bool) {
	if start == nil || goal == nil {
		return nil, false
	}
	if start == goal {
		return []hop{{area: start, how: TraverseNone}}, true
	}

	heuristic := func(area *Area) float64 {
		return float64(Distance(area.Center(), goalPos))
	}

	open := &searchQueue{}
	heap.Init(open)
	startNode := &searchNode{area: start, g: 0, f: heuristic(start), via: hop{area: start, how: TraverseNone}}
	heap.Push(open, startNode)

	nodes := map[uint32]*searchNode{start.ID: startNode}
	closed := make(map[uint32]bool, len(m.areas))

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchNode)
		if current.area == goal {
			return unwind(current), true
		}
		closed[current.area.ID] = true

		m.neighbours(current.area, func(step hop) {
			if closed[step.area.ID] {
				return
			}
			tentative := current.g + edgeCost(current.area, step, route)
			existing, ok := nodes[step.area.ID]
			if ok && tentative >= existing.g {
				return
			}
			if !ok {
				existing = &searchNode{area: step.area, index: -1}
				nodes[step.area.ID] = existing
			}
			existing.g = tentative
			existing.f = tentative + heuristic(step.area)
			existing.parent = current
			existing.via = step
			if existing.index >= 0 {
				heap.Fix(open, existing.index)
			} else {
				heap.Push(open, existing)
			}
		})
	}
	return nil, false
}

func unwind(node *searchNode) []hop {
	var reversed []hop
	for n := node; n != nil; n = n.parent {
		reversed = append(reversed, n.via)
	}
	chain := make([]hop, len(reversed))
	for i := range reversed {
		chain[i] = reversed[len(reversed)-1-i]
	}
	return chain
}

// buildPath converts a searched chain into waypoints written into out.
// Walking steps target the point of the entered area closest to the previous
// waypoint and ladder steps target the ladder end. A closing waypoint holding
// the goal position projected onto the goal area is appended.
func buildPath(chain []hop, startPos, goalPos Vector, generation uint32, out []Waypoint) (int, error) {
	count := len(chain) + 1
	if count > len(out) || count > MaxPathLength {
		return 0, ErrPathTooLong
	}
	prev := startPos
	for i, step := range chain {
		wp := Waypoint{
			Area: AreaRef{ID: step.area.ID, Generation: generation},
			How:  step.how,
		}
		switch {
		case i == 0:
			wp.How = TraverseNone
			wp.Pos = startPos
		case step.ladder != nil && step.how == GoLadderUp:
			wp.Pos = step.ladder.Top
		case step.ladder != nil:
			wp.Pos = step.ladder.Bottom
		default:
			wp.Pos = step.area.ClosestPoint(prev)
		}
		if step.ladder != nil {
			wp.Ladder = LadderRef{ID: step.ladder.ID, Generation: generation}
		}
		out[i] = wp
		prev = wp.Pos
	}
	goal := chain[len(chain)-1].area
	out[len(chain)] = Waypoint{
		Area: AreaRef{ID: goal.ID, Generation: generation},
		How:  TraverseNone,
		Pos:  goal.ClosestPoint(goalPos),
	}
	return count, nil
}
