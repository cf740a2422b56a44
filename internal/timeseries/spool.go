package timeseries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/observability"
)

// SpoolingSink wraps a primary sink. Batches the primary rejects are parked in
// a Redis list and replayed, oldest first, before the next write.
type SpoolingSink struct {
	primary    Sink
	client     redis.Cmdable
	key        string
	maxBatches int64
}

// NewSpoolingSink returns a sink that spools to the Redis list at key, keeping
// at most maxBatches entries.
func NewSpoolingSink(primary Sink, client redis.Cmdable, key string, maxBatches int64) *SpoolingSink {
	if primary == nil || client == nil {
		panic("spooling sink requires a primary sink and a redis client")
	}
	if maxBatches < 1 {
		maxBatches = 1
	}
	return &SpoolingSink{primary: primary, client: client, key: key, maxBatches: maxBatches}
}

// Write replays pending batches, then writes points. A primary failure is not
// returned when the batch could be spooled.
func (s *SpoolingSink) Write(ctx context.Context, points []Point) error {
	log := logger.FromContext(ctx)

	if err := s.Replay(ctx); err != nil {
		log.Warn("spool replay stopped", slog.Any("error", err))
	}

	if len(points) == 0 {
		return nil
	}

	writeErr := s.primary.Write(ctx, points)
	if writeErr == nil {
		return nil
	}

	if err := s.push(ctx, points); err != nil {
		return errors.Join(writeErr, err)
	}

	observability.BatchWritesTotal.WithLabelValues("spooled").Inc()
	log.Warn("batch write failed, spooled for retry",
		slog.Int("points", len(points)),
		slog.Any("error", writeErr),
	)
	return nil
}

// Replay drains the spool into the primary sink until it is empty or a write fails.
func (s *SpoolingSink) Replay(ctx context.Context) error {
	defer s.updateDepth(ctx)

	for {
		raw, err := s.client.LPop(ctx, s.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to pop spooled batch: %w", err)
		}

		points, err := decodeBatch(raw)
		if err != nil {
			// A corrupt entry can never succeed; drop it rather than block the spool.
			logger.FromContext(ctx).Error("dropping unreadable spooled batch", slog.Any("error", err))
			continue
		}

		if err := s.primary.Write(ctx, points); err != nil {
			if pushErr := s.client.LPush(ctx, s.key, raw).Err(); pushErr != nil {
				return errors.Join(err, fmt.Errorf("failed to requeue spooled batch: %w", pushErr))
			}
			return err
		}
	}
}

// Depth returns the number of spooled batches.
func (s *SpoolingSink) Depth(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}

func (s *SpoolingSink) push(ctx context.Context, points []Point) error {
	raw, err := encodeBatch(points)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, raw)
		pipe.LTrim(ctx, s.key, -s.maxBatches, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to spool batch: %w", err)
	}
	s.updateDepth(ctx)
	return nil
}

func (s *SpoolingSink) updateDepth(ctx context.Context) {
	if n, err := s.Depth(ctx); err == nil {
		observability.SpoolDepth.Set(float64(n))
	}
}

// spooledValue keeps the Go type of a field so integers stay integers on replay.
type spooledValue struct {
	Kind  string  `json:"k"`
	Int   int64   `json:"i,omitempty"`
	Float float64 `json:"f,omitempty"`
	Str   string  `json:"s,omitempty"`
}

type spooledPoint struct {
	Measurement string                  `json:"m"`
	Time        time.Time               `json:"t"`
	Tags        map[string]string       `json:"tags,omitempty"`
	Fields      map[string]spooledValue `json:"fields"`
}

func encodeBatch(points []Point) ([]byte, error) {
	out := make([]spooledPoint, 0, len(points))
	for _, p := range points {
		sp := spooledPoint{
			Measurement: p.Measurement,
			Time:        p.Time,
			Tags:        p.Tags,
			Fields:      make(map[string]spooledValue, len(p.Fields)),
		}
		for k, v := range p.Fields {
			switch val := v.(type) {
			case nil:
				sp.Fields[k] = spooledValue{Kind: "n"}
			case int64:
				sp.Fields[k] = spooledValue{Kind: "i", Int: val}
			case int:
				sp.Fields[k] = spooledValue{Kind: "i", Int: int64(val)}
			case float64:
				sp.Fields[k] = spooledValue{Kind: "f", Float: val}
			case string:
				sp.Fields[k] = spooledValue{Kind: "s", Str: val}
			default:
				return nil, fmt.Errorf("unsupported field type %T for %s.%s", v, p.Measurement, k)
			}
		}
		out = append(out, sp)
	}
	return json.Marshal(out)
}

func decodeBatch(raw []byte) ([]Point, error) {
	var in []spooledPoint
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(in))
	for _, sp := range in {
		fields := make(map[string]any, len(sp.Fields))
		for k, v := range sp.Fields {
			switch v.Kind {
			case "i":
				fields[k] = v.Int
			case "f":
				fields[k] = v.Float
			case "s":
				fields[k] = v.Str
			default:
				fields[k] = nil
			}
		}
		points = append(points, NewPoint(sp.Measurement, sp.Time, sp.Tags, fields))
	}
	return points, nil
}
