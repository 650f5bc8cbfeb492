package vision

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"liedar/internal/landmark"
)

// Cascade locations tried when the configured file does not load.
var cascadeFallbacks = []string{
	"haarcascade_frontalface_default.xml",
	"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/opt/homebrew/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
}

// CascadeDetector finds a coarse face box with a Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	path       string
}

// NewCascadeDetector loads the cascade at path, falling back to the usual
// OpenCV install locations.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	for _, p := range append([]string{path}, cascadeFallbacks...) {
		if p != "" && classifier.Load(p) {
			return &CascadeDetector{classifier: classifier, path: p}, nil
		}
	}
	classifier.Close()
	return nil, fmt.Errorf("failed to load face cascade from %s or alternative paths", filepath.Clean(path))
}

// Path returns the cascade file that was loaded.
func (d *CascadeDetector) Path() string { return d.path }

// Detect returns the largest face in img.
func (d *CascadeDetector) Detect(img landmark.Image) (landmark.Observation, bool) {
	mat, ok := asMat(img)
	if !ok {
		return landmark.Observation{}, false
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	d.mu.Lock()
	faces := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 5, 0, image.Pt(60, 60), image.Pt(0, 0))
	d.mu.Unlock()

	face, ok := largest(faces)
	if !ok {
		return landmark.Observation{}, false
	}
	return landmark.Observation{Face: face}, true
}

func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
