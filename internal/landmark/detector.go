package landmark

import "image"

// Image is anything a Detector can look at.
type Image interface {
	Bounds() image.Rectangle
}

// Observation is what a Detector found in one image. Landmarks is nil when
// only a coarse face rectangle is available; Face is empty when only
// landmarks are.
type Observation struct {
	Landmarks *Frame
	Face      image.Rectangle
}

// Empty reports whether nothing usable was observed.
func (o Observation) Empty() bool {
	return o.Landmarks == nil && o.Face.Empty()
}

// Detector locates a face in an image. Backends range from a coarse face
// detector to a full landmark model; scorers only see the Observation.
type Detector interface {
	Detect(img Image) (Observation, bool)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(img Image) (Observation, bool)

func (fn DetectorFunc) Detect(img Image) (Observation, bool) { return fn(img) }

// Chain asks each detector in turn and returns the first observation found.
// Nil detectors are skipped.
func Chain(detectors ...Detector) Detector {
	return DetectorFunc(func(img Image) (Observation, bool) {
		for _, d := range detectors {
			if d == nil {
				continue
			}
			if obs, ok := d.Detect(img); ok && !obs.Empty() {
				return obs, true
			}
		}
		return Observation{}, false
	})
}
