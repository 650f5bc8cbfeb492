// Package landmark describes face-mesh landmarks as seen by the scorers and
// the capability that produces them.
package landmark

import (
	"image"
	"math"
)

// ID identifies a face-mesh point. Values follow the 468-point MediaPipe
// face mesh topology.
type ID int

const (
	LeftBrowOuter      ID = 70
	LeftBrowOuterUpper ID = 63
	LeftBrowMiddle     ID = 105
	LeftBrowInnerUpper ID = 66
	LeftBrowInner      ID = 107

	RightBrowInner      ID = 336
	RightBrowInnerUpper ID = 296
	RightBrowMiddle     ID = 334
	RightBrowOuterUpper ID = 293
	RightBrowOuter      ID = 300

	LeftEyeUpperLid  ID = 159
	LeftEyeLowerLid  ID = 145
	LeftEyeBelow     ID = 23
	RightEyeUpperLid ID = 386
	RightEyeLowerLid ID = 374
	RightEyeBelow    ID = 253

	UpperLipCenter ID = 13
	LowerLipCenter ID = 14
	MouthLeft      ID = 61
	MouthRight     ID = 291
)

// MeshSize is the number of points in a full face mesh.
const MeshSize = 468

var (
	LeftBrow  = []ID{LeftBrowOuter, LeftBrowOuterUpper, LeftBrowMiddle, LeftBrowInnerUpper, LeftBrowInner}
	RightBrow = []ID{RightBrowInner, RightBrowInnerUpper, RightBrowMiddle, RightBrowOuterUpper, RightBrowOuter}

	// LeftEyeTop and RightEyeTop are the eyelid pairs the brow height is
	// measured against.
	LeftEyeTop  = []ID{LeftEyeUpperLid, LeftEyeLowerLid}
	RightEyeTop = []ID{RightEyeUpperLid, RightEyeLowerLid}

	// Forehead traces the upper face oval down to the chin; its bounding box
	// is the skin region sampled for pulse.
	Forehead = []ID{
		10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
		397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
	}
)

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Frame is one detection result: normalized landmark coordinates plus the
// pixel size of the image they were found in. A Frame is never modified
// after construction.
type Frame struct {
	points map[ID]Point
	width  int
	height int
}

// NewFrame copies points into a new Frame for an image of width x height.
func NewFrame(width, height int, points map[ID]Point) *Frame {
	cp := make(map[ID]Point, len(points))
	for id, p := range points {
		cp[id] = p
	}
	return &Frame{points: cp, width: width, height: height}
}

// FromMesh builds a Frame from a face mesh listed in index order.
func FromMesh(width, height int, mesh []Point) *Frame {
	points := make(map[ID]Point, len(mesh))
	for i, p := range mesh {
		points[ID(i)] = p
	}
	return &Frame{points: points, width: width, height: height}
}

func (f *Frame) Width() int  { return f.width }
func (f *Frame) Height() int { return f.height }

// Len returns the number of points held.
func (f *Frame) Len() int { return len(f.points) }

// Normalized returns the point in [0,1] image coordinates.
func (f *Frame) Normalized(id ID) (Point, bool) {
	p, ok := f.points[id]
	return p, ok
}

// Pixel returns the point scaled to image pixels.
func (f *Frame) Pixel(id ID) (Point, bool) {
	p, ok := f.points[id]
	if !ok {
		return Point{}, false
	}
	return Point{X: p.X * float64(f.width), Y: p.Y * float64(f.height)}, true
}

// Pixels returns every requested point in pixels, in order. ok is false if
// any of them is missing.
func (f *Frame) Pixels(ids []ID) ([]Point, bool) {
	out := make([]Point, len(ids))
	for i, id := range ids {
		p, ok := f.Pixel(id)
		if !ok {
			return nil, false
		}
		out[i] = p
	}
	return out, true
}

// Has reports whether every id is present.
func (f *Frame) Has(ids ...ID) bool {
	for _, id := range ids {
		if _, ok := f.points[id]; !ok {
			return false
		}
	}
	return true
}

// MeanY returns the mean vertical pixel coordinate of the points.
func MeanY(pts []Point) float64 {
	if len(pts) == 0 {
		return 0
	}
	var s float64
	for _, p := range pts {
		s += p.Y
	}
	return s / float64(len(pts))
}

// Bounds returns the smallest pixel rectangle holding every point.
func Bounds(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}
