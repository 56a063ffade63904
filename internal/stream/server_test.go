package stream_test

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/speechhook/internal/observe"
	"github.com/MrWong99/speechhook/internal/stream"
	"github.com/MrWong99/speechhook/pkg/onset"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServer runs a stream server with the given detector config behind an
// httptest server and dials it. Cleanup closes both ends.
func startServer(t *testing.T, cfg stream.Config) *websocket.Conn {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	srv := httptest.NewServer(stream.New(cfg, metrics))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// event mirrors the server's message/onsetEvent shapes for test IO.
type event struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid,omitempty"`
	Frame     int    `json:"frame,omitempty"`
	Media     *media `json:"media,omitempty"`
}

type media struct {
	Payload string `json:"payload"`
}

func mediaEvent(payload []byte) event {
	return event{Event: "media", Media: &media{Payload: base64.StdEncoding.EncodeToString(payload)}}
}

// pcm16Sine generates n PCM16LE samples of a sine tone.
func pcm16Sine(freq float64, sampleRate, n int, amp float64) []byte {
	buf := make([]byte, n*2)
	for i := range n {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*32767)))
	}
	return buf
}

func testStreamConfig() stream.Config {
	det := onset.HighDefinition(8000)
	det.OnsetFrames = 3
	det.OffsetFrames = 2
	return stream.Config{Detector: det}
}

func TestStreamEmitsOnsetEvent(t *testing.T) {
	cfg := testStreamConfig()
	conn := startServer(t, cfg)

	send(t, conn, event{Event: "start", StreamSid: "MZtest"})

	// Enough tone for OnsetFrames full frames, delivered as one payload.
	n := cfg.Detector.FrameSize * cfg.Detector.OnsetFrames
	send(t, conn, mediaEvent(pcm16Sine(1000, cfg.Detector.SampleRate, n, 0.5)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading onset event: %v", err)
	}
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Event != "onset" {
		t.Errorf("event = %q, want onset", ev.Event)
	}
	if ev.StreamSid != "MZtest" {
		t.Errorf("streamSid = %q, want MZtest", ev.StreamSid)
	}
	if ev.Frame != cfg.Detector.OnsetFrames {
		t.Errorf("frame = %d, want %d", ev.Frame, cfg.Detector.OnsetFrames)
	}
}

func TestStreamSilenceEmitsNothing(t *testing.T) {
	cfg := testStreamConfig()
	conn := startServer(t, cfg)

	send(t, conn, event{Event: "start", StreamSid: "MZquiet"})
	silence := make([]byte, cfg.Detector.FrameSize*2*20)
	send(t, conn, mediaEvent(silence))
	send(t, conn, event{Event: "stop"})

	// The only message the server sends before closing must be none at all:
	// the read should surface the normal close, not an onset event.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err == nil {
		t.Fatalf("unexpected message before close: %s", data)
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		t.Errorf("close status = %v, want normal closure", status)
	}
}

func TestStreamChunksSpanningFrames(t *testing.T) {
	// Payload boundaries must not matter: the same tone delivered in odd
	// chunk sizes still confirms on the OnsetFrames-th frame.
	cfg := testStreamConfig()
	conn := startServer(t, cfg)

	send(t, conn, event{Event: "start", StreamSid: "MZchunky"})

	n := cfg.Detector.FrameSize * cfg.Detector.OnsetFrames
	tone := pcm16Sine(1000, cfg.Detector.SampleRate, n, 0.5)
	// Send in uneven slices that straddle frame boundaries.
	chunk := cfg.Detector.FrameSize/3*2 + 2
	for off := 0; off < len(tone); off += chunk {
		end := off + chunk
		if end > len(tone) {
			end = len(tone)
		}
		send(t, conn, mediaEvent(tone[off:end]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading onset event: %v", err)
	}
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Event != "onset" || ev.Frame != cfg.Detector.OnsetFrames {
		t.Errorf("got %+v, want onset at frame %d", ev, cfg.Detector.OnsetFrames)
	}
}

func TestStreamMediaBeforeStartCloses(t *testing.T) {
	cfg := testStreamConfig()
	conn := startServer(t, cfg)

	send(t, conn, mediaEvent(make([]byte, 64)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("expected the server to close the connection")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Errorf("close status = %v, want policy violation", status)
	}
}

func TestStreamIgnoresUnknownEvents(t *testing.T) {
	cfg := testStreamConfig()
	conn := startServer(t, cfg)

	send(t, conn, event{Event: "start", StreamSid: "MZmarks"})
	send(t, conn, event{Event: "mark"})
	send(t, conn, event{Event: "connected"})

	// The stream still works after unknown events.
	n := cfg.Detector.FrameSize * cfg.Detector.OnsetFrames
	send(t, conn, mediaEvent(pcm16Sine(1000, cfg.Detector.SampleRate, n, 0.5)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading onset event: %v", err)
	}
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Event != "onset" {
		t.Errorf("event = %q, want onset", ev.Event)
	}
}
