package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ghcn-daily-etl/internal/config"
	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// publishBatchSize caps the number of messages handed to one WriteMessages call.
const publishBatchSize = 500

// Writer produces one message per day row to a Kafka topic.
// It implements pipeline.RowPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{}, // keep a station's days on one partition
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, now: time.Now}
}

// PublishRows serializes and publishes rows in batches. Messages are keyed by
// station and date so replays overwrite rather than duplicate in compacted topics.
func (w *Writer) PublishRows(ctx context.Context, runID string, rows []domain.OutputRow) error {
	processedAt := w.now().UTC()
	for start := 0; start < len(rows); start += publishBatchSize {
		end := min(start+publishBatchSize, len(rows))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(rows[i], runID, processedAt)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish rows %d-%d: %w", start, end-1, err)
		}
	}
	w.logger.Debug("rows published", "topic", w.writer.Topic, "rows", len(rows), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// ObservationMessage is the JSON value of a published day row.
type ObservationMessage struct {
	Station  string                    `json:"station"`
	Date     string                    `json:"date"` // YYYY-MM-DD
	Elements map[string]ReadingMessage `json:"elements"`
}

// ReadingMessage carries one element's value and flags. Value is null when
// the archive reported no data for the day.
type ReadingMessage struct {
	Value *float64 `json:"value"`
	MFlag string   `json:"mflag,omitempty"`
	QFlag string   `json:"qflag,omitempty"`
	SFlag string   `json:"sflag,omitempty"`
}

// serializeToMessage marshals a day row into a Kafka message.
func serializeToMessage(row domain.OutputRow, runID string, processedAt time.Time) (kafkago.Message, error) {
	body := ObservationMessage{
		Station:  row.Station,
		Date:     row.ISODate(),
		Elements: make(map[string]ReadingMessage, len(domain.Elements)),
	}
	for _, e := range domain.Elements {
		rd := row.Reading(e)
		rm := ReadingMessage{MFlag: rd.MFlag, QFlag: rd.QFlag, SFlag: rd.SFlag}
		if rd.HasValue {
			v := rd.Number
			rm.Value = &v
		}
		body.Elements[string(e)] = rm
	}

	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize day row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.Station + "|" + body.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
