// AIPATH chunk parser for the mission navigation database.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/voidworks/darkvr/pkg/math"
)

// AIPATH format errors.
var (
	ErrTruncatedAIPathData = errors.New("truncated AIPATH data")
	ErrAIPathTooLarge      = errors.New("AIPATH table exceeds sanity limit")
)

// Sanity limits enforced during load. Counts beyond these abort the
// parse; the mission continues without navigation.
const (
	maxAIPathCells    = 50000
	maxAIPathPlanes   = 50000
	maxAIPathVertices = 100000
)

// PathCellFlags mark properties of a navigation cell.
type PathCellFlags uint8

const (
	PathCellUnpathable    PathCellFlags = 1 << 0
	PathCellBelowDoor     PathCellFlags = 1 << 1
	PathCellBlockingOBB   PathCellFlags = 1 << 2
	PathCellMovingTerrain PathCellFlags = 1 << 3
)

// MovementBits describe which movement classes may traverse a link.
type MovementBits uint8

const (
	MoveWalk          MovementBits = 1 << 0
	MoveFly           MovementBits = 1 << 1
	MoveSwim          MovementBits = 1 << 2
	MoveSmallCreature MovementBits = 1 << 3
)

// AIPathCell is one convex floor polygon. The on-disk record is 32 bytes:
//
//	offset 0  u16 first_vertex
//	offset 2  u16 first_cell
//	offset 4  u16 plane
//	offset 6  u16 next
//	offset 8  u16 best_neighbor
//	offset 10 u16 link_from_neighbor
//	offset 12 u8  vertex_count
//	offset 13 u8  path_flags
//	offset 14 u8  cell_count
//	offset 15 u8  wrap_flags
//	offset 16 f32 center.x/y/z
//	offset 28 u32 bitfield
type AIPathCell struct {
	ID               uint32
	FirstVertex      uint16
	FirstCell        uint16
	Plane            uint16
	Next             uint16
	BestNeighbor     uint16
	LinkFromNeighbor uint16
	VertexCount      uint8
	Flags            PathCellFlags
	CellCount        uint8
	WrapFlags        uint8
	Center           math.Vec3
	Bitfield         uint32

	// VertexIndices is back-filled from the cell-vertex-link table by
	// walking (FirstVertex, VertexCount).
	VertexIndices []uint32
}

// AIPathVertex is a navigation mesh vertex: f32 x, y, z plus a u32 of
// point info the core does not interpret.
type AIPathVertex struct {
	Position math.Vec3
	PtInfo   uint32
}

// AIPathLink connects two cells across a shared edge. The on-disk record
// is 8 bytes: u16 dest, u16 v1, u16 v2, u8 ok_bits, u8 cost. FromCell is
// back-filled after parsing by walking every cell's (FirstCell,
// CellCount) slice of the link table.
type AIPathLink struct {
	FromCell    uint32
	ToCell      uint16
	EdgeVertexA uint16
	EdgeVertexB uint16
	OKBits      MovementBits
	Cost        uint8
}

// AIPath is the parsed navigation database.
type AIPath struct {
	Inited   bool
	Cells    []AIPathCell
	Vertices []AIPathVertex
	Links    []AIPathLink
}

// ParseAIPath parses an AIPATH chunk. All integers are little-endian.
// A chunk with pathfind_inited == 0 yields an empty, uninited database.
func ParseAIPath(data []byte) (*AIPath, error) {
	if len(data) < 12 {
		return nil, ErrTruncatedAIPathData
	}

	r := bytes.NewReader(data)

	var inited, unknown uint32
	binary.Read(r, binary.LittleEndian, &inited)
	binary.Read(r, binary.LittleEndian, &unknown)

	if inited == 0 {
		return &AIPath{}, nil
	}

	path := &AIPath{Inited: true}

	// Cells. Stored counts are raw; actual count is raw+1.
	var cellsRaw uint32
	if err := binary.Read(r, binary.LittleEndian, &cellsRaw); err != nil {
		return nil, ErrTruncatedAIPathData
	}
	numCells := cellsRaw + 1
	if numCells > maxAIPathCells {
		return nil, fmt.Errorf("%w: %d cells", ErrAIPathTooLarge, numCells)
	}

	path.Cells = make([]AIPathCell, numCells)
	for i := uint32(0); i < numCells; i++ {
		c := &path.Cells[i]
		c.ID = i
		if err := readAIPathCell(r, c); err != nil {
			return nil, fmt.Errorf("parsing cell %d: %w", i, err)
		}
	}

	// Planes: counted, then skipped (16 bytes each).
	var planesRaw uint32
	if err := binary.Read(r, binary.LittleEndian, &planesRaw); err != nil {
		return nil, ErrTruncatedAIPathData
	}
	numPlanes := planesRaw + 1
	if numPlanes > maxAIPathPlanes {
		return nil, fmt.Errorf("%w: %d planes", ErrAIPathTooLarge, numPlanes)
	}
	if _, err := r.Seek(int64(numPlanes)*16, 1); err != nil {
		return nil, ErrTruncatedAIPathData
	}

	// Vertices: 16 bytes each.
	var verticesRaw uint32
	if err := binary.Read(r, binary.LittleEndian, &verticesRaw); err != nil {
		return nil, ErrTruncatedAIPathData
	}
	numVertices := verticesRaw + 1
	if numVertices > maxAIPathVertices {
		return nil, fmt.Errorf("%w: %d vertices", ErrAIPathTooLarge, numVertices)
	}

	path.Vertices = make([]AIPathVertex, numVertices)
	for i := uint32(0); i < numVertices; i++ {
		v := &path.Vertices[i]
		for _, field := range []any{&v.Position.X, &v.Position.Y, &v.Position.Z, &v.PtInfo} {
			if err := binary.Read(r, binary.LittleEndian, field); err != nil {
				return nil, fmt.Errorf("parsing vertex %d: %w", i, ErrTruncatedAIPathData)
			}
		}
	}

	// Links: 8 bytes each.
	var linksRaw uint32
	if err := binary.Read(r, binary.LittleEndian, &linksRaw); err != nil {
		return nil, ErrTruncatedAIPathData
	}
	numLinks := linksRaw + 1

	path.Links = make([]AIPathLink, numLinks)
	for i := uint32(0); i < numLinks; i++ {
		l := &path.Links[i]
		for _, field := range []any{&l.ToCell, &l.EdgeVertexA, &l.EdgeVertexB, &l.OKBits, &l.Cost} {
			if err := binary.Read(r, binary.LittleEndian, field); err != nil {
				return nil, fmt.Errorf("parsing link %d: %w", i, ErrTruncatedAIPathData)
			}
		}
	}

	// Cell-vertex links: u32 vertex ids, indexed by cell (FirstVertex, VertexCount).
	var cellVertsRaw uint32
	if err := binary.Read(r, binary.LittleEndian, &cellVertsRaw); err != nil {
		return nil, ErrTruncatedAIPathData
	}
	numCellVerts := cellVertsRaw + 1

	cellVerts := make([]uint32, numCellVerts)
	for i := uint32(0); i < numCellVerts; i++ {
		if err := binary.Read(r, binary.LittleEndian, &cellVerts[i]); err != nil {
			return nil, fmt.Errorf("parsing cell-vertex %d: %w", i, ErrTruncatedAIPathData)
		}
	}

	path.backfill(cellVerts)
	return path, nil
}

func readAIPathCell(r *bytes.Reader, c *AIPathCell) error {
	fields := []any{
		&c.FirstVertex, &c.FirstCell, &c.Plane, &c.Next,
		&c.BestNeighbor, &c.LinkFromNeighbor,
		&c.VertexCount, &c.Flags, &c.CellCount, &c.WrapFlags,
		&c.Center.X, &c.Center.Y, &c.Center.Z, &c.Bitfield,
	}
	for _, field := range fields {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return ErrTruncatedAIPathData
		}
	}
	return nil
}

// backfill resolves per-cell vertex indices via the cell-vertex-link
// table and stamps every link's FromCell by walking each cell's declared
// link range. Out-of-range indices skip the offending element.
func (p *AIPath) backfill(cellVerts []uint32) {
	for i := range p.Cells {
		c := &p.Cells[i]
		c.VertexIndices = make([]uint32, 0, c.VertexCount)
		for j := 0; j < int(c.VertexCount); j++ {
			idx := int(c.FirstVertex) + j
			if idx >= len(cellVerts) {
				break
			}
			vid := cellVerts[idx]
			if vid >= uint32(len(p.Vertices)) {
				continue
			}
			c.VertexIndices = append(c.VertexIndices, vid)
		}

		for j := 0; j < int(c.CellCount); j++ {
			idx := int(c.FirstCell) + j
			if idx >= len(p.Links) {
				break
			}
			p.Links[idx].FromCell = c.ID
		}
	}
}

// ParseAIPathFile parses an AIPATH chunk from disk.
func ParseAIPathFile(path string) (*AIPath, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading AIPATH file: %w", err)
	}
	return ParseAIPath(data)
}
