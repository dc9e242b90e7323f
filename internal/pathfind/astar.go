// Package pathfind finds road routes on a tile grid and rasterizes them into
// track masks.
package pathfind

import (
	"container/heap"
	"math"

	"github.com/neatdrive/simulator/pkg/core"
)

// TurnPenalty is added to the step cost whenever the route changes direction.
const TurnPenalty = 1.5

// directions are the 4-connected moves: up, right, down, left.
var directions = [4]core.Tile{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

// Result is the outcome of a search. An empty Path means no route exists.
type Result struct {
	Path []core.Tile
	Cost float64
	// Length is len(Path) * tileSize, a pixel proxy for the route length.
	Length int
}

// Found reports whether a route was found.
func (r Result) Found() bool { return len(r.Path) > 0 }

// Find runs A* between the tiles containing the start and goal pixels.
// Endpoints off the road snap to the nearest road tile. Empty or ragged
// grids yield no route.
func Find(grid Grid, start, goal core.Position2D, tileSize int) Result {
	if grid.Validate() != nil || tileSize <= 0 {
		return Result{}
	}

	s, ok := snap(grid, grid.TileAt(start, tileSize))
	if !ok {
		return Result{}
	}
	e, _ := snap(grid, grid.TileAt(goal, tileSize))

	path, cost, ok := search(grid, s, e)
	if !ok {
		return Result{}
	}
	return Result{Path: path, Cost: cost, Length: len(path) * tileSize}
}

func snap(grid Grid, t core.Tile) (core.Tile, bool) {
	if grid.IsRoad(t) {
		return t, true
	}
	return grid.NearestRoad(t)
}

func search(grid Grid, start, goal core.Tile) ([]core.Tile, float64, bool) {
	w, h := grid.Width(), grid.Height()
	index := func(t core.Tile) int { return t.Y*w + t.X }

	gScore := make([]float64, w*h)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	cameFrom := make([]int, w*h)
	heading := make([]int, w*h)
	closed := make([]bool, w*h)

	startIdx := index(start)
	gScore[startIdx] = 0
	cameFrom[startIdx] = -1
	heading[startIdx] = -1

	open := &openSet{}
	open.push(startIdx, heuristic(start, goal))

	goalIdx := index(goal)
	for open.Len() > 0 {
		cur := open.pop()
		if closed[cur] {
			continue
		}
		closed[cur] = true
		if cur == goalIdx {
			return reconstruct(cameFrom, goalIdx, w), gScore[goalIdx], true
		}

		ct := core.Tile{X: cur % w, Y: cur / w}
		for _, d := range neighborOrder(heading[cur]) {
			next := core.Tile{X: ct.X + directions[d].X, Y: ct.Y + directions[d].Y}
			if !grid.IsRoad(next) {
				continue
			}
			ni := index(next)
			if closed[ni] {
				continue
			}

			cost := gScore[cur] + 1
			if heading[cur] >= 0 && d != heading[cur] {
				cost += TurnPenalty
			}
			if cost >= gScore[ni] {
				continue
			}
			gScore[ni] = cost
			cameFrom[ni] = cur
			heading[ni] = d
			open.push(ni, cost+heuristic(next, goal))
		}
	}
	return nil, 0, false
}

// neighborOrder lists direction indexes with the current heading first.
func neighborOrder(current int) []int {
	order := make([]int, 0, len(directions))
	if current >= 0 {
		order = append(order, current)
	}
	for d := range directions {
		if d != current {
			order = append(order, d)
		}
	}
	return order
}

func reconstruct(cameFrom []int, goal, w int) []core.Tile {
	var path []core.Tile
	for i := goal; i >= 0; i = cameFrom[i] {
		path = append(path, core.Tile{X: i % w, Y: i / w})
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

func heuristic(a, b core.Tile) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

type node struct {
	index int
	f     float64
	seq   uint64
}

// openSet is a min-heap ordered by f, then by insertion order.
type openSet struct {
	nodes []node
	seq   uint64
}

func (o *openSet) push(index int, f float64) {
	o.seq++
	heap.Push(o, node{index: index, f: f, seq: o.seq})
}

func (o *openSet) pop() int {
	return heap.Pop(o).(node).index
}

func (o *openSet) Len() int { return len(o.nodes) }

func (o *openSet) Less(i, j int) bool {
	if o.nodes[i].f != o.nodes[j].f {
		return o.nodes[i].f < o.nodes[j].f
	}
	return o.nodes[i].seq < o.nodes[j].seq
}

func (o *openSet) Swap(i, j int) { o.nodes[i], o.nodes[j] = o.nodes[j], o.nodes[i] }

func (o *openSet) Push(x any) { o.nodes = append(o.nodes, x.(node)) }

func (o *openSet) Pop() any {
	n := o.nodes[len(o.nodes)-1]
	o.nodes = o.nodes[:len(o.nodes)-1]
	return n
}
