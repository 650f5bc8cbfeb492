package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// ErrCameraUnavailable is returned when the camera cannot be opened or
// stops delivering frames.
var ErrCameraUnavailable = errors.New("vision: camera unavailable")

// maxEmptyReads is how many consecutive failed reads end a capture.
const maxEmptyReads = 30

// Camera reads frames from a local capture device.
type Camera struct {
	capture *gocv.VideoCapture
	id      int
}

// OpenCamera opens device id and asks it for fps frames per second.
func OpenCamera(id, fps int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w: %w", id, ErrCameraUnavailable, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open camera %d: %w", id, ErrCameraUnavailable)
	}
	capture.Set(gocv.VideoCaptureFPS, float64(fps))
	return &Camera{capture: capture, id: id}, nil
}

// Run delivers frames to sink until ctx is cancelled or the device fails.
// sink owns each frame and must Close it.
func (c *Camera) Run(ctx context.Context, sink func(frame *MatFrame, at time.Time)) error {
	empty := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		mat := gocv.NewMat()
		if ok := c.capture.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			empty++
			if empty >= maxEmptyReads {
				return fmt.Errorf("camera %d stopped delivering frames: %w", c.id, ErrCameraUnavailable)
			}
			continue
		}
		empty = 0
		sink(NewMatFrame(mat), time.Now())
	}
}

func (c *Camera) Close() error {
	return c.capture.Close()
}
