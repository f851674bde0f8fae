//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/crime-stats-service/internal/adapter/kafka"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/police"
	"github.com/couchcryptid/crime-stats-service/internal/config"
	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/ingest"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testRecordsTopic = "test-crime-records"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("crime-stats-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func newConsumer(broker, topic string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
}

// policeStub serves two crimes per requested month.
func policeStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		month := r.URL.Query().Get("date")
		fmt.Fprintf(w, `[
			{"category":"burglary","month":%q,"location":{"latitude":"53.4075","longitude":"-2.9919"}},
			{"category":"drugs","month":%q,"location":{"latitude":"53.4080","longitude":"-2.9920"}}
		]`, month, month)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memorySink struct {
	totals     []domain.MonthlyTotal
	categories []domain.MonthlyCategoryTotal
}

func (s *memorySink) UpsertLocationTotals(_ context.Context, rows []domain.MonthlyTotal) error {
	s.totals = append(s.totals, rows...)
	return nil
}

func (s *memorySink) UpsertCategoryTotals(_ context.Context, rows []domain.MonthlyCategoryTotal) error {
	s.categories = append(s.categories, rows...)
	return nil
}

// TestIngestPublishesRecords runs ingest against a stubbed police API and a
// real broker, then reads the published records back.
func TestIngestPublishesRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testRecordsTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaRecordsTopic: testRecordsTopic,
	}
	publisher := kafka.NewPublisher(cfg, discardLogger())
	defer publisher.Close()

	g, dupes := domain.NewGazetteer([]domain.Location{
		{Name: "Liverpool", Lat: 53.4075, Lng: -2.9919, Population: 864122},
	})
	require.Empty(t, dupes)

	metrics := observability.NewMetricsForTesting()
	client := police.NewClient(policeStub(t).URL, 10*time.Second, metrics, discardLogger())
	sink := &memorySink{}
	loader := ingest.NewLoader(g, client, sink, publisher, domain.DefaultRatePolicy(), discardLogger(), metrics)

	rng := &domain.PeriodRange{StartYear: 2023, StartMonth: 1, EndYear: 2023, EndMonth: 2}
	sum, err := loader.Run(ctx, []string{"Liverpool"}, rng)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.RecordsPushed)
	assert.Len(t, sink.totals, 2)
	assert.Len(t, sink.categories, 4)

	consumer := newConsumer(broker, testRecordsTopic)
	defer consumer.Close()

	months := map[string]int{}
	for range 4 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read published record")

		assert.Equal(t, "Liverpool", string(msg.Key))
		var rec kafka.Record
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, "Liverpool", rec.Location)
		assert.Contains(t, []string{"burglary", "drugs"}, rec.Category)
		months[string(rec.Period)]++
	}
	assert.Equal(t, map[string]int{"2023-01": 2, "2023-02": 2}, months)
}
