package world

import (
	"testing"

	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

// buildTestPath returns a 4-cell strip: 0 -> 1 -> 2 -> 3, with a
// fly-only shortcut 0 -> 3 and cell 2 unpathable on the alternate
// route check.
func buildTestPath() *formats.AIPath {
	p := &formats.AIPath{
		Inited: true,
		Cells: []formats.AIPathCell{
			{ID: 0, Center: math.Vec3{X: 0}},
			{ID: 1, Center: math.Vec3{X: 10}},
			{ID: 2, Center: math.Vec3{X: 20}},
			{ID: 3, Center: math.Vec3{X: 30}},
		},
		Links: []formats.AIPathLink{
			{FromCell: 0, ToCell: 1, OKBits: formats.MoveWalk, Cost: 1},
			{FromCell: 1, ToCell: 2, OKBits: formats.MoveWalk, Cost: 1},
			{FromCell: 2, ToCell: 3, OKBits: formats.MoveWalk, Cost: 1},
			{FromCell: 0, ToCell: 3, OKBits: formats.MoveFly, Cost: 1},
		},
	}
	return p
}

func TestFindPathWalk(t *testing.T) {
	db := NewPathDatabase(buildTestPath())

	path := db.FindPath(0, 3, formats.MoveWalk)
	want := []int{0, 1, 2, 3}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestFindPathMovementClass(t *testing.T) {
	db := NewPathDatabase(buildTestPath())

	path := db.FindPath(0, 3, formats.MoveFly)
	if len(path) != 2 || path[0] != 0 || path[1] != 3 {
		t.Fatalf("fly path = %v, want direct [0 3]", path)
	}
}

func TestFindPathBlockedByUnpathableCell(t *testing.T) {
	p := buildTestPath()
	p.Cells[2].Flags |= formats.PathCellUnpathable
	db := NewPathDatabase(p)

	if path := db.FindPath(0, 3, formats.MoveWalk); path != nil {
		t.Fatalf("path through unpathable cell = %v", path)
	}
}

func TestFindPathUnreachableGoal(t *testing.T) {
	db := NewPathDatabase(buildTestPath())

	if path := db.FindPath(3, 0, formats.MoveWalk); path != nil {
		t.Fatalf("reverse path = %v, links are one-way", path)
	}
}

func TestNilDatabase(t *testing.T) {
	var db *PathDatabase
	if db.CellCount() != 0 {
		t.Fatal("nil database reports cells")
	}
	if path := db.FindPath(0, 1, formats.MoveWalk); path != nil {
		t.Fatal("nil database found a path")
	}
	if cell := db.CellAt(math.Vec3{}); cell != -1 {
		t.Fatalf("nil database CellAt = %d", cell)
	}
}

func TestCellAtSkipsUnpathable(t *testing.T) {
	p := buildTestPath()
	p.Cells[0].Flags |= formats.PathCellUnpathable
	db := NewPathDatabase(p)

	if cell := db.CellAt(math.Vec3{X: 1}); cell != 1 {
		t.Fatalf("CellAt = %d, want nearest pathable cell 1", cell)
	}
}

func TestNextWaypoint(t *testing.T) {
	db := NewPathDatabase(buildTestPath())

	wp, ok := db.NextWaypoint(math.Vec3{X: 0}, math.Vec3{X: 30}, formats.MoveWalk)
	if !ok {
		t.Fatal("no waypoint")
	}
	if wp.X != 10 {
		t.Fatalf("waypoint x = %v, want next cell center 10", wp.X)
	}
}
