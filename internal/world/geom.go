package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/citysim/worldcore/internal/core/ecs"
)

// MaxDistanceSq is returned for distances that cannot be computed.
const MaxDistanceSq = float32(math.MaxFloat32)

// Reference is the entity whose proximity drives every distance decision,
// usually the player or the vehicle under control.
type Reference struct {
	ID       ecs.EntityID
	Position mgl32.Vec3
}

func distanceSq(a, b mgl32.Vec3) float32 {
	d := a.Sub(b)
	return d.Dot(d)
}

// RegionCoord identifies one square cell of the world tiling.
type RegionCoord struct {
	X, Z int32
}

// Bounds is the inclusive range of valid region coordinates.
type Bounds struct {
	MinX, MaxX int32
	MinZ, MaxZ int32
}

func (b Bounds) Contains(c RegionCoord) bool {
	return c.X >= b.MinX && c.X <= b.MaxX && c.Z >= b.MinZ && c.Z <= b.MaxZ
}

// Count is the number of regions inside the bounds.
func (b Bounds) Count() int {
	if b.MaxX < b.MinX || b.MaxZ < b.MinZ {
		return 0
	}
	return int(b.MaxX-b.MinX+1) * int(b.MaxZ-b.MinZ+1)
}

// Grid maps world positions onto region coordinates. Y is up; regions tile
// the X/Z plane.
type Grid struct {
	CellSize float32
	Bounds   Bounds
}

func floorCell(v, size float32) int32 {
	return int32(math.Floor(float64(v / size)))
}

// RegionOf returns the region containing pos. The result may lie outside
// the bounds; callers check with Check before using it.
func (g Grid) RegionOf(pos mgl32.Vec3) RegionCoord {
	return RegionCoord{X: floorCell(pos.X(), g.CellSize), Z: floorCell(pos.Z(), g.CellSize)}
}

// Origin is the minimum corner of the region at ground level.
func (g Grid) Origin(c RegionCoord) mgl32.Vec3 {
	return mgl32.Vec3{float32(c.X) * g.CellSize, 0, float32(c.Z) * g.CellSize}
}

// Center is the region midpoint at ground level.
func (g Grid) Center(c RegionCoord) mgl32.Vec3 {
	half := g.CellSize / 2
	return g.Origin(c).Add(mgl32.Vec3{half, 0, half})
}

func (g Grid) Check(c RegionCoord) error {
	if !g.Bounds.Contains(c) {
		return &BoundsError{Coord: c, Bounds: g.Bounds}
	}
	return nil
}

// Within returns every in-bounds region whose center lies within radius of
// pos on the X/Z plane, nearest first.
func (g Grid) Within(pos mgl32.Vec3, radius float32) []RegionCoord {
	lo := g.RegionOf(pos.Sub(mgl32.Vec3{radius, 0, radius}))
	hi := g.RegionOf(pos.Add(mgl32.Vec3{radius, 0, radius}))
	lo.X = max(lo.X, g.Bounds.MinX)
	lo.Z = max(lo.Z, g.Bounds.MinZ)
	hi.X = min(hi.X, g.Bounds.MaxX)
	hi.Z = min(hi.Z, g.Bounds.MaxZ)

	flat := mgl32.Vec3{pos.X(), 0, pos.Z()}
	r2 := radius * radius
	var out []RegionCoord
	var dist []float32
	for x := lo.X; x <= hi.X; x++ {
		for z := lo.Z; z <= hi.Z; z++ {
			c := RegionCoord{X: x, Z: z}
			if d := distanceSq(g.Center(c), flat); d <= r2 {
				out = append(out, c)
				dist = append(dist, d)
			}
		}
	}
	sortByDistance(out, dist)
	return out
}

// PlanarDistanceSq is the squared X/Z distance from pos to the region center.
func (g Grid) PlanarDistanceSq(c RegionCoord, pos mgl32.Vec3) float32 {
	return distanceSq(g.Center(c), mgl32.Vec3{pos.X(), 0, pos.Z()})
}
