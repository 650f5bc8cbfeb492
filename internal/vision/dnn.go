package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"liedar/internal/landmark"
)

// DetectionThreshold is the minimum confidence for a face detection.
const DetectionThreshold = 0.6

// DNNDetector finds faces with an SSD face network (res10 300x300).
type DNNDetector struct {
	mu        sync.Mutex
	net       gocv.Net
	threshold float32
}

// NewDNNDetector loads the network from modelPath and configPath.
func NewDNNDetector(modelPath, configPath string) (*DNNDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &DNNDetector{net: net, threshold: DetectionThreshold}, nil
}

// Detect returns the most confident face in img.
func (d *DNNDetector) Detect(img landmark.Image) (landmark.Observation, bool) {
	mat, ok := asMat(img)
	if !ok {
		return landmark.Observation{}, false
	}

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(300, 300), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	// Rows of [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates
	// relative to the input size.
	detections := output.Reshape(1, output.Total()/7)
	defer detections.Close()

	var (
		best     image.Rectangle
		bestConf float32
	)
	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	for i := 0; i < detections.Rows(); i++ {
		confidence := detections.GetFloatAt(i, 2)
		if confidence < d.threshold || confidence <= bestConf {
			continue
		}
		rect := image.Rect(
			int(detections.GetFloatAt(i, 3)*float32(mat.Cols())),
			int(detections.GetFloatAt(i, 4)*float32(mat.Rows())),
			int(detections.GetFloatAt(i, 5)*float32(mat.Cols())),
			int(detections.GetFloatAt(i, 6)*float32(mat.Rows())),
		).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		best, bestConf = rect, confidence
	}

	if best.Empty() {
		return landmark.Observation{}, false
	}
	return landmark.Observation{Face: best}, true
}

func (d *DNNDetector) Close() error {
	return d.net.Close()
}
