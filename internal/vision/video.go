package vision

import (
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// VideoFile reads frames from a recorded video.
type VideoFile struct {
	capture *gocv.VideoCapture
	path    string
}

func OpenVideoFile(path string) (*VideoFile, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: unsupported or unreadable file", path)
	}
	return &VideoFile{capture: capture, path: path}, nil
}

// FPS is the frame rate recorded in the container, 0 when unknown.
func (v *VideoFile) FPS() float64 {
	return v.capture.Get(gocv.VideoCaptureFPS)
}

// Next returns the next frame, or io.EOF after the last one. The caller
// owns the frame.
func (v *VideoFile) Next() (*MatFrame, error) {
	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}
	return NewMatFrame(mat), nil
}

func (v *VideoFile) Close() error {
	return v.capture.Close()
}
