// Package world provides the navigation view of a loaded mission:
// convex floor cells, cell links, and cell-graph pathfinding.
package world

import (
	"container/heap"

	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

// PathDatabase is the navigation graph built from an AIPATH chunk.
// Cells index p.Cells; links index p.Links.
type PathDatabase struct {
	path *formats.AIPath

	// outgoing[c] lists link indices leaving cell c, built once from
	// the back-filled from-cell fields.
	outgoing [][]int
}

// NewPathDatabase wraps a parsed AIPATH chunk. A nil chunk yields a nil
// database; pathfinding on a nil database returns no path, so missions
// without navigation leave AIs idle.
func NewPathDatabase(path *formats.AIPath) *PathDatabase {
	if path == nil {
		return nil
	}
	db := &PathDatabase{
		path:     path,
		outgoing: make([][]int, len(path.Cells)),
	}
	for i, l := range path.Links {
		from := int(l.FromCell)
		if from >= 0 && from < len(db.outgoing) {
			db.outgoing[from] = append(db.outgoing[from], i)
		}
	}
	return db
}

// CellCount returns the number of navigation cells.
func (db *PathDatabase) CellCount() int {
	if db == nil {
		return 0
	}
	return len(db.path.Cells)
}

// CellCenter returns the center of one cell.
func (db *PathDatabase) CellCenter(cell int) (math.Vec3, bool) {
	if db == nil || cell < 0 || cell >= len(db.path.Cells) {
		return math.Vec3{}, false
	}
	return db.path.Cells[cell].Center, true
}

// CellAt returns the index of the pathable cell whose center is
// nearest to the position, or -1 when no cell qualifies.
func (db *PathDatabase) CellAt(pos math.Vec3) int {
	if db == nil {
		return -1
	}
	best := -1
	bestDist := float32(0)
	for i, c := range db.path.Cells {
		if c.Flags&formats.PathCellUnpathable != 0 {
			continue
		}
		d := c.Center.Sub(pos).LengthSquared()
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

type cellNode struct {
	cell   int
	g      float32
	f      float32
	parent *cellNode
	index  int
}

type cellHeap []*cellNode

func (h cellHeap) Len() int           { return len(h) }
func (h cellHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h cellHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *cellHeap) Push(x interface{}) {
	n := len(*h)
	node := x.(*cellNode)
	node.index = n
	*h = append(*h, node)
}

func (h *cellHeap) Pop() interface{} {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[0 : n-1]
	return node
}

// FindPath runs A* over the cell graph from start to goal for a
// movement class. Links whose ok-bits exclude the class are skipped,
// as are unpathable destination cells. Returns the cell index sequence
// including both endpoints, or nil when unreachable.
func (db *PathDatabase) FindPath(start, goal int, movement formats.MovementBits) []int {
	if db == nil {
		return nil
	}
	cells := db.path.Cells
	if start < 0 || start >= len(cells) || goal < 0 || goal >= len(cells) {
		return nil
	}
	if cells[goal].Flags&formats.PathCellUnpathable != 0 {
		return nil
	}

	openSet := &cellHeap{}
	heap.Init(openSet)

	closedSet := make(map[int]bool)
	nodeMap := make(map[int]*cellNode)

	startNode := &cellNode{cell: start}
	startNode.f = db.heuristic(start, goal)
	heap.Push(openSet, startNode)
	nodeMap[start] = startNode

	maxIterations := len(cells) * 4
	iterations := 0

	for openSet.Len() > 0 && iterations < maxIterations {
		iterations++

		current := heap.Pop(openSet).(*cellNode)
		if current.cell == goal {
			return reconstructCells(current)
		}
		closedSet[current.cell] = true

		for _, li := range db.outgoing[current.cell] {
			link := db.path.Links[li]
			if link.OKBits&movement == 0 {
				continue
			}
			dest := int(link.ToCell)
			if dest < 0 || dest >= len(cells) {
				continue
			}
			if cells[dest].Flags&formats.PathCellUnpathable != 0 {
				continue
			}
			if closedSet[dest] {
				continue
			}

			g := current.g + float32(link.Cost) + 1

			neighbor, exists := nodeMap[dest]
			if !exists {
				neighbor = &cellNode{
					cell:   dest,
					g:      g,
					parent: current,
				}
				neighbor.f = g + db.heuristic(dest, goal)
				nodeMap[dest] = neighbor
				heap.Push(openSet, neighbor)
			} else if g < neighbor.g {
				neighbor.g = g
				neighbor.f = g + db.heuristic(dest, goal)
				neighbor.parent = current
				heap.Fix(openSet, neighbor.index)
			}
		}
	}

	return nil
}

// NextWaypoint returns the center of the next cell on the path from
// the position toward the goal position, for steering.
func (db *PathDatabase) NextWaypoint(from, to math.Vec3, movement formats.MovementBits) (math.Vec3, bool) {
	start := db.CellAt(from)
	goal := db.CellAt(to)
	if start < 0 || goal < 0 {
		return math.Vec3{}, false
	}
	path := db.FindPath(start, goal, movement)
	if len(path) < 2 {
		return to, len(path) == 1
	}
	return db.path.Cells[path[1]].Center, true
}

func (db *PathDatabase) heuristic(cell, goal int) float32 {
	d := db.path.Cells[goal].Center.Sub(db.path.Cells[cell].Center)
	return d.Length()
}

func reconstructCells(node *cellNode) []int {
	var path []int
	for node != nil {
		path = append(path, node.cell)
		node = node.parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
