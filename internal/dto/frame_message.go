package dto

import (
	"encoding/base64"
	"fmt"
	"time"

	"liedar/internal/landmark"
)

// LandmarkPoint is one normalized mesh point in [0,1] image coordinates.
type LandmarkPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FrameMessage is a text frame sent by a remote camera client. Image holds a
// base64 JPEG or PNG. Landmarks, when present, is the full face mesh in
// mesh order and Width/Height are the pixel size it refers to.
type FrameMessage struct {
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Image     string          `json:"image"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	Landmarks []LandmarkPoint `json:"landmarks,omitempty"`
}

// DecodeImage returns the raw image bytes, or nil when none were sent.
func (m FrameMessage) DecodeImage() ([]byte, error) {
	if m.Image == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(m.Image)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return b, nil
}

// LandmarkFrame converts the mesh into a landmark.Frame. It returns nil when
// the message carries no usable landmarks.
func (m FrameMessage) LandmarkFrame() (*landmark.Frame, error) {
	if len(m.Landmarks) == 0 {
		return nil, nil
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("landmarks need a positive width and height, got %dx%d", m.Width, m.Height)
	}
	mesh := make([]landmark.Point, len(m.Landmarks))
	for i, p := range m.Landmarks {
		mesh[i] = landmark.Point{X: p.X, Y: p.Y}
	}
	return landmark.FromMesh(m.Width, m.Height, mesh), nil
}

// Time returns the client timestamp or fallback when none was sent.
func (m FrameMessage) Time(fallback time.Time) time.Time {
	if m.Timestamp == nil || m.Timestamp.IsZero() {
		return fallback
	}
	return *m.Timestamp
}
