package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liedar/internal/config"
	"liedar/internal/dto"
	"liedar/internal/facial"
	"liedar/internal/fusion"
	"liedar/internal/logger"
	"liedar/internal/pipeline"
	"liedar/internal/pulse"
	"liedar/internal/service"
	"liedar/internal/voice"
)

func newManager(t *testing.T) *service.Manager {
	t.Helper()
	e, err := fusion.New(fusion.DefaultWeights())
	require.NoError(t, err)
	p := pipeline.New(facial.New(), pulse.New(30), voice.New(), e)
	m := service.NewManager(p, nil, &config.Config{FPS: 30, QueueSize: 16}, logger.NewWriterLogger(io.Discard))
	t.Cleanup(m.Stop)
	return m
}

func dialWS(t *testing.T, h http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestResetHandler(t *testing.T) {
	m := newManager(t)
	h := ResetHandler(m)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/reset", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status pipeline.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 0, status.Ticks)
	assert.Equal(t, 50.0, status.HonestyScore)
}

func TestWeightsHandler(t *testing.T) {
	m := newManager(t)
	h := WeightsHandler(m, logger.NewWriterLogger(io.Discard))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/weights", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var current fusion.Weights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.InDelta(t, 0.4, current.Facial, 1e-9)
	assert.InDelta(t, 0.3, current.Voice, 1e-9)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/weights", strings.NewReader(`{"facial":0,"voice":1,"pulse":1}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var w fusion.Weights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.InDelta(t, 0.5, w.Voice, 1e-9)
	assert.InDelta(t, 0.5, w.Pulse, 1e-9)
	assert.Equal(t, w, m.Weights())

	tests := map[string]string{
		"negative":  `{"voice":-1}`,
		"all zero":  `{"facial":0,"voice":0,"pulse":0}`,
		"malformed": `{"voice":`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodPost, "/api/weights", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, w, m.Weights())
		})
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodDelete, "/api/weights", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusHandler(t *testing.T) {
	m := newManager(t)
	h := StatusHandler(m)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"latest"`)

	require.True(t, m.HandleFrame(service.FrameTask{}))
	require.Eventually(t, func() bool { _, ok := m.Latest(); return ok }, 5*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var resp dto.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Session.Ticks)
	require.NotNil(t, resp.Latest)
	assert.Equal(t, 1, resp.Latest.Tick)
}

func TestCameraWebsocketHandler(t *testing.T) {
	m := newManager(t)
	conn := dialWS(t, CameraWebsocketHandler(m, logger.NewWriterLogger(io.Discard)))

	mesh := make([]dto.LandmarkPoint, 468)
	for i := range mesh {
		mesh[i] = dto.LandmarkPoint{X: 0.5, Y: 0.5}
	}
	msg, err := json.Marshal(dto.FrameMessage{Width: 640, Height: 480, Landmarks: mesh})
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0xD8, 0xFF, 0xD9}))

	var rec pipeline.Record
	require.Eventually(t, func() bool {
		var ok bool
		rec, ok = m.Latest()
		return ok && rec.Tick == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, rec.FaceDetected, "binary frames without a decoder carry no face")
}

func TestFrameTask(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := fmt.Sprintf(`{"timestamp":%q,"image":%q}`, ts.Format(time.RFC3339), base64.StdEncoding.EncodeToString([]byte("img")))

	task, err := frameTask(websocket.TextMessage, []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ts, task.Time.UTC())
	assert.Equal(t, []byte("img"), task.Image)
	assert.Nil(t, task.Landmarks)

	_, err = frameTask(websocket.TextMessage, []byte(`{"landmarks":[{"x":0.1,"y":0.1}]}`))
	assert.Error(t, err, "landmarks need the image size")
}

func TestAudioWebsocketHandler(t *testing.T) {
	m := newManager(t)
	conn := dialWS(t, AudioWebsocketHandler(m, logger.NewWriterLogger(io.Discard)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ignored")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 3200)))

	assert.Eventually(t, func() bool { return m.Status().AudioBuffered == 1600 }, 5*time.Second, 10*time.Millisecond)
}

func TestFrameAssembler(t *testing.T) {
	a := newFrameAssembler()

	_, ok := a.Add("cam", []byte{0xFF, 0xD8, 1, 2})
	assert.False(t, ok)
	frame, ok := a.Add("cam", []byte{3, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8, 1, 2, 3, 0xFF, 0xD9}, frame)

	_, ok = a.Add("cam", []byte{9, 0xFF, 0xD9})
	assert.False(t, ok, "a tail without a start is discarded")

	frame, ok = a.Add("other", []byte{0xFF, 0xD8, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Len(t, frame, 4)
}

func TestLoginLogout(t *testing.T) {
	cfg := &config.Config{Password: "secret"}
	h := LoginHandler(cfg, logger.NewWriterLogger(io.Discard))

	post := func(password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(url.Values{"password": {password}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post("wrong").Code)

	rec := post("secret")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "true", cookies[0].Value)

	rec = httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestLogHandlers(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{LogDirectory: dir, LogLevel: "info"}
	lg, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	defer lg.Close()

	lg.Warning("pulse signal lost")

	rec := httptest.NewRecorder()
	ShowLogsHandler(cfg, logger.WarningFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pulse signal lost")

	rec = httptest.NewRecorder()
	ClearLogsHandler(lg, logger.WarningFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/warning/clear", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	ClearLogsHandler(lg, logger.WarningFile)(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	b, err := os.ReadFile(filepath.Join(dir, logger.WarningFile))
	require.NoError(t, err)
	assert.Empty(t, b)

	rec = httptest.NewRecorder()
	ShowLogsHandler(cfg, "missing.log")(rec, httptest.NewRequest(http.MethodGet, "/logs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
