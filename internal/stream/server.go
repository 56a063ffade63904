package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/speechhook/internal/observe"
	"github.com/MrWong99/speechhook/pkg/onset"
)

// tracerName is the instrumentation scope for stream spans.
const tracerName = "github.com/MrWong99/speechhook/internal/stream"

// message is the envelope for Twilio-style media-stream events. Only the
// fields the detector cares about are decoded; unknown fields are ignored so
// provider-specific extras (timestamps, chunk counters, track labels) pass
// through harmlessly.
type message struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// onsetEvent is written back to the client on the frame where a speech onset
// is confirmed.
type onsetEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid,omitempty"`
	Frame     int    `json:"frame"`
}

// Config holds the stream server settings.
type Config struct {
	// Detector is the validated detector configuration used for every
	// stream; each connection gets its own instance.
	Detector onset.Config

	// SourceSampleRate declares the rate of incoming PCM16 payloads when it
	// differs from Detector.SampleRate. Zero means no resampling.
	SourceSampleRate int
}

// Server accepts WebSocket media streams and runs one detector per stream.
// Safe for concurrent use; per-stream state lives in the connection handler.
type Server struct {
	cfg     Config
	metrics *observe.Metrics
	tracer  trace.Tracer
}

// New creates a stream server. A nil metrics falls back to the package
// default instruments.
func New(cfg Config, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		cfg:     cfg,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs the stream loop
// until the client closes or the context is cancelled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("stream: websocket accept failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream handler exited")

	ctx, span := s.tracer.Start(r.Context(), "stream.connection")
	defer span.End()

	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(ctx, -1)

	if err := s.run(ctx, conn); err != nil {
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
			conn.Close(websocket.StatusNormalClosure, "done")
			return
		}
		slog.Warn("stream: connection ended with error", "err", err, "remote", r.RemoteAddr)
		conn.Close(websocket.StatusPolicyViolation, err.Error())
	}
}

// run reads media-stream events until the socket closes. A session exists
// between a start and a stop event; media before start is rejected.
func (s *Server) run(ctx context.Context, conn *websocket.Conn) error {
	var sess *session

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.New("malformed media-stream message: " + err.Error())
		}

		switch msg.Event {
		case "start":
			if sess != nil {
				// A new logical segment on a live socket: recalibrate.
				sess.reset()
				sess.streamSid = msg.StreamSid
				slog.Debug("stream: restarted", "stream_sid", msg.StreamSid)
				continue
			}
			sess, err = newSession(msg.StreamSid, s.cfg.Detector, s.cfg.SourceSampleRate, s.metrics)
			if err != nil {
				return err
			}
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("stream.sid", msg.StreamSid))
			slog.Info("stream: started",
				"stream_sid", msg.StreamSid,
				"encoding", s.cfg.Detector.Encoding,
				"sample_rate", s.cfg.Detector.SampleRate,
			)

		case "media":
			if sess == nil {
				return errors.New("media event before start")
			}
			if msg.Media == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				s.metrics.DecodeErrors.Add(ctx, 1)
				slog.Warn("stream: undecodable media payload", "stream_sid", sess.streamSid, "err", err)
				continue
			}
			onsets, err := sess.ingest(ctx, payload)
			if err != nil {
				slog.Warn("stream: frame rejected", "stream_sid", sess.streamSid, "err", err)
			}
			for _, frame := range onsets {
				if err := writeJSON(ctx, conn, onsetEvent{Event: "onset", StreamSid: sess.streamSid, Frame: frame}); err != nil {
					return err
				}
			}

		case "stop":
			if sess != nil {
				slog.Info("stream: stopped", "stream_sid", sess.streamSid, "frames", sess.frames)
			}
			conn.Close(websocket.StatusNormalClosure, "stream stopped")
			return nil

		default:
			// Providers send additional events (connected, mark, dtmf);
			// ignore anything the detector does not need.
			slog.Debug("stream: ignoring event", "event", msg.Event)
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
