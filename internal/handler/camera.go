package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"liedar/internal/dto"
	"liedar/internal/logger"
	"liedar/internal/service"
)

const maxFrameBytes = 4 << 20

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// CameraWebsocketHandler ingests video from a remote client. Binary messages
// are raw JPEG/PNG frames; text messages are dto.FrameMessage JSON, which may
// carry a face mesh computed on the client.
func CameraWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(maxFrameBytes)

		logger.Info("📹 Camera connected from %s", r.RemoteAddr)
		for {
			kind, data, err := connection.ReadMessage()
			if err != nil {
				logDisconnect(logger, "Camera", err)
				return
			}

			task, err := frameTask(kind, data)
			if err != nil {
				logger.Warning("Invalid camera message: %v", err)
				continue
			}
			manager.HandleFrame(task)
		}
	}
}

func frameTask(kind int, data []byte) (service.FrameTask, error) {
	now := time.Now()
	if kind == websocket.BinaryMessage {
		return service.FrameTask{Time: now, Image: data}, nil
	}

	var msg dto.FrameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return service.FrameTask{}, fmt.Errorf("decode frame message: %w", err)
	}
	img, err := msg.DecodeImage()
	if err != nil {
		return service.FrameTask{}, err
	}
	lm, err := msg.LandmarkFrame()
	if err != nil {
		return service.FrameTask{}, err
	}
	return service.FrameTask{Time: msg.Time(now), Image: img, Landmarks: lm}, nil
}

// UDPCameraHandler listens for chunked JPEG frames on port, reassembles them
// per sender and queues every complete frame. It returns when ctx ends.
func UDPCameraHandler(ctx context.Context, manager *service.Manager, logger *logger.Logger, port int) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return fmt.Errorf("listen on UDP port %d: %w", port, err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP camera handler started on port %d", port)
	buffer := make([]byte, 65535)
	frames := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("UDP camera handler stopped")
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}
		if frame, ok := frames.Add(remoteAddr.IP.String(), buffer[:n]); ok {
			manager.HandleFrame(service.FrameTask{Time: time.Now(), Image: frame})
		}
	}
}

// frameAssembler rebuilds JPEG frames split across datagrams: a packet
// starting with the SOI marker opens a frame, one ending with EOI closes it.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

func (a *frameAssembler) Add(source string, data []byte) ([]byte, bool) {
	buf, ok := a.buffers[source]
	if !ok {
		buf = new(bytes.Buffer)
		a.buffers[source] = buf
	}

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	} else if buf.Len() == 0 {
		// Tail of a frame whose start was lost.
		return nil, false
	}
	if buf.Len()+len(data) > maxFrameBytes {
		buf.Reset()
		return nil, false
	}
	buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}
	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	buf.Reset()
	return frame, true
}
