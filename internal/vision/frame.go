// Package vision adapts OpenCV images and face detectors to the scorer
// interfaces.
package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"liedar/internal/pulse"
)

var ErrEmptyImage = errors.New("vision: empty image")

// MatFrame is a decoded BGR video frame. It owns its Mat; call Close when
// done.
type MatFrame struct {
	mat gocv.Mat
}

// NewMatFrame takes ownership of mat.
func NewMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// DecodeFrame decodes a JPEG or PNG buffer into a frame.
func DecodeFrame(b []byte) (*MatFrame, error) {
	mat, err := gocv.IMDecode(b, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyImage
	}
	return &MatFrame{mat: mat}, nil
}

func (f *MatFrame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

// ChannelMean averages one BGR channel over region.
func (f *MatFrame) ChannelMean(region image.Rectangle, ch pulse.Channel) (float64, error) {
	region = region.Intersect(f.Bounds())
	if region.Empty() {
		return 0, pulse.ErrEmptyRegion
	}
	if f.mat.Channels() < 3 {
		return 0, fmt.Errorf("vision: expected 3 channels, got %d", f.mat.Channels())
	}

	roi := f.mat.Region(region)
	defer roi.Close()

	s := roi.Mean()
	switch ch {
	case pulse.Blue:
		return s.Val1, nil
	case pulse.Green:
		return s.Val2, nil
	case pulse.Red:
		return s.Val3, nil
	}
	return 0, fmt.Errorf("vision: unknown channel %d", ch)
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}

// asMat unwraps images produced by this package.
func asMat(img any) (gocv.Mat, bool) {
	f, ok := img.(*MatFrame)
	if !ok || f == nil || f.mat.Empty() {
		return gocv.Mat{}, false
	}
	return f.mat, true
}

// largest returns the face with the biggest area.
func largest(faces []image.Rectangle) (image.Rectangle, bool) {
	if len(faces) == 0 {
		return image.Rectangle{}, false
	}
	best := faces[0]
	for _, face := range faces[1:] {
		if face.Dx()*face.Dy() > best.Dx()*best.Dy() {
			best = face
		}
	}
	return best, true
}
