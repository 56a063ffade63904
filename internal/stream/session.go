// Package stream implements the WebSocket media-stream ingest for the
// speechhook server. It speaks the Twilio-style media-stream protocol: JSON
// messages with start/media/stop events carrying base64-encoded audio
// payloads. Each stream gets its own detector instance; when the detector
// confirms a speech onset the server writes an onset event back on the same
// connection so the caller can interrupt its TTS playback.
package stream

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/speechhook/internal/observe"
	"github.com/MrWong99/speechhook/pkg/audio"
	"github.com/MrWong99/speechhook/pkg/onset"
)

// session carries the per-stream detection state: one detector, one frame
// chunker, and running counters. Sessions are confined to their connection's
// read loop and need no locking.
type session struct {
	streamSid  string
	det        *onset.Detector
	chunker    *audio.FrameChunker
	sourceRate int // non-zero: resample PCM16 payloads from this rate
	frames     int
	metrics    *observe.Metrics
	encAttr    metric.MeasurementOption
}

func newSession(streamSid string, detCfg onset.Config, sourceRate int, metrics *observe.Metrics) (*session, error) {
	det, err := onset.New(detCfg)
	if err != nil {
		return nil, fmt.Errorf("stream: creating detector: %w", err)
	}
	// Mu-law streams arrive at the telephony rate by definition; resampling
	// only applies to PCM16 sources.
	if detCfg.Encoding != onset.EncodingPCM16 {
		sourceRate = 0
	}
	if sourceRate == detCfg.SampleRate {
		sourceRate = 0
	}
	return &session{
		streamSid:  streamSid,
		det:        det,
		chunker:    audio.NewFrameChunker(detCfg.FrameSize * detCfg.Encoding.SampleWidth()),
		sourceRate: sourceRate,
		metrics:    metrics,
		encAttr:    metric.WithAttributes(attribute.String("encoding", string(detCfg.Encoding))),
	}, nil
}

// ingest feeds one media payload through the chunker and detector and
// returns the frame indices (1-based since stream start) at which onsets
// were confirmed. Malformed frames increment the decode-error counter and
// are skipped; the detector state is unaffected by them.
func (s *session) ingest(ctx context.Context, payload []byte) ([]int, error) {
	if s.sourceRate != 0 {
		payload = audio.ResampleMono16(payload, s.sourceRate, s.det.Config().SampleRate)
	}

	var onsets []int
	for _, frame := range s.chunker.Push(payload) {
		start := time.Now()
		confirmed, err := s.det.ProcessFrame(frame)
		if err != nil {
			s.metrics.DecodeErrors.Add(ctx, 1, s.encAttr)
			return onsets, err
		}
		s.frames++
		s.metrics.FrameDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.FramesProcessed.Add(ctx, 1, s.encAttr)
		s.metrics.NoiseFloor.Record(ctx, s.det.NoiseFloor())
		if confirmed {
			s.metrics.OnsetsDetected.Add(ctx, 1)
			onsets = append(onsets, s.frames)
		}
	}
	return onsets, nil
}

// reset clears detection state between logical segments of one connection,
// e.g. when a new start event arrives on a live socket.
func (s *session) reset() {
	s.det.Reset()
	s.chunker.Reset()
	s.frames = 0
}
