//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkaadapter "github.com/couchcryptid/ghcn-daily-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ghcn-daily-etl/internal/config"
	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
	"github.com/couchcryptid/ghcn-daily-etl/internal/observability"
	"github.com/couchcryptid/ghcn-daily-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcKafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-ghcn-daily"

// publishedRow holds a deserialized message read from the sink topic.
type publishedRow struct {
	Body    kafkaadapter.ObservationMessage
	Key     string
	Headers map[string]string
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tcKafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tcKafka.WithClusterID("ghcn-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// readPublished reads a single message from the sink consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedRow {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var body kafkaadapter.ObservationMessage
	require.NoError(t, json.Unmarshal(msg.Value, &body), "unmarshal sink message")

	return publishedRow{Body: body, Key: string(msg.Key), Headers: headers}
}

// TestPipelinePublishesDayRows runs a conversion with the Kafka writer as the
// row publisher and reads every day row back from the topic.
func TestPipelinePublishesDayRows(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	writer := kafkaadapter.NewWriter(cfg, logger)
	t.Cleanup(func() { _ = writer.Close() })

	dir := t.TempDir()
	input := filepath.Join(dir, "USC00479190.dly")
	src := domain.FormatRawRecord(domain.RawRecord{
		StationID: "USC00479190", Year: 2020, Month: 2, Element: "PRCP",
		Days: []domain.Observation{{Value: "25", SFlag: "7"}, {Value: "-9999"}, {Value: "0", MFlag: "T", SFlag: "7"}},
	}) + "\n" + domain.FormatRawRecord(domain.RawRecord{
		StationID: "USC00479190", Year: 2020, Month: 2, Element: "TMAX",
		Days: []domain.Observation{{Value: "-56", SFlag: "7"}, {Value: "105", SFlag: "7"}},
	}) + "\n"
	require.NoError(t, os.WriteFile(input, []byte(src), 0o600))

	p := pipeline.New(nil, writer, logger, observability.NewMetricsForTesting(), pipeline.Options{WorkDir: dir})
	res, err := p.Run(ctx, pipeline.Job{InputPath: input, OutputPath: filepath.Join(dir, "out.csv"), Format: "csv"})
	require.NoError(t, err)
	require.Equal(t, 3, res.Published)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testSinkTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readPublished(ctx, t, consumer)
	assert.Equal(t, "USC00479190|2020-02-01", first.Key)
	assert.Equal(t, res.RunID, first.Headers["run_id"])
	assert.NotEmpty(t, first.Headers["processed_at"])
	assert.Equal(t, "2020-02-01", first.Body.Date)
	require.NotNil(t, first.Body.Elements["PRCP"].Value)
	assert.InDelta(t, 2.5, *first.Body.Elements["PRCP"].Value, 1e-9)
	require.NotNil(t, first.Body.Elements["TMAX"].Value)
	assert.InDelta(t, -5.6, *first.Body.Elements["TMAX"].Value, 1e-9)

	second := readPublished(ctx, t, consumer)
	assert.Equal(t, "USC00479190|2020-02-02", second.Key)
	assert.Nil(t, second.Body.Elements["PRCP"].Value, "sentinel is published as null")

	third := readPublished(ctx, t, consumer)
	assert.Equal(t, "USC00479190|2020-02-03", third.Key)
	assert.Equal(t, "T", third.Body.Elements["PRCP"].MFlag)
	assert.Nil(t, third.Body.Elements["TMAX"].Value, "TMAX series ends before day 3")
}
