package pulse

import (
	"image"

	"liedar/internal/landmark"
)

// foreheadPadding widens the landmark bounding box on every side, in pixels.
const foreheadPadding = 10

// ForeheadFromLandmarks returns the padded bounding box of the forehead
// landmarks, clipped to the image. ok is false when a landmark is missing or
// the clipped box is empty.
func ForeheadFromLandmarks(f *landmark.Frame) (image.Rectangle, bool) {
	if f == nil {
		return image.Rectangle{}, false
	}
	pts, ok := f.Pixels(landmark.Forehead)
	if !ok {
		return image.Rectangle{}, false
	}
	r := landmark.Bounds(pts).Inset(-foreheadPadding)
	r = r.Intersect(image.Rect(0, 0, f.Width(), f.Height()))
	return r, !r.Empty()
}

// ForeheadFromFace approximates the forehead inside a coarse face box: the
// top 30% of its height across the middle 60% of its width.
func ForeheadFromFace(face image.Rectangle) image.Rectangle {
	if face.Empty() {
		return image.Rectangle{}
	}
	w, h := face.Dx(), face.Dy()
	return image.Rect(
		face.Min.X+w*2/10,
		face.Min.Y,
		face.Min.X+w*8/10,
		face.Min.Y+h*3/10,
	)
}

// Region picks the best skin region an Observation offers: landmarks first,
// then the face box.
func Region(obs landmark.Observation) (image.Rectangle, bool) {
	if r, ok := ForeheadFromLandmarks(obs.Landmarks); ok {
		return r, true
	}
	r := ForeheadFromFace(obs.Face)
	return r, !r.Empty()
}
