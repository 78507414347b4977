package kafka

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/addanuj/mcp-client/pkg/logging"
)

const defaultProduceTimeout = 5 * time.Second

// Producer publishes records to Kafka.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
	Close() error
}

// KafkaProducer implements Producer on a franz-go client.
type KafkaProducer struct {
	client *kgo.Client
	logger logging.Logger
}

// NewKafkaProducer creates a producer for the given seed brokers.
func NewKafkaProducer(brokers []string, clientID string, logger logging.Logger) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if clientID == "" {
		clientID = "mcp-client"
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.ProducerBatchMaxBytes(1000000),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaProducer{client: client, logger: logger}, nil
}

func (p *KafkaProducer) Close() error {
	p.client.Close()
	return nil
}

// Produce writes one record synchronously. A context without deadline gets
// the default produce timeout.
func (p *KafkaProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	record := BuildRecord(topic, key, value, headers)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultProduceTimeout)
		defer cancel()
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// HealthCheck pings the brokers.
func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultProduceTimeout)
	defer cancel()

	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("kafka health check failed: %w", err)
	}
	return nil
}

// BuildRecord assembles a record with headers in a stable key order.
func BuildRecord(topic string, key, value []byte, headers map[string]string) *kgo.Record {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	for _, k := range sortedKeys(headers) {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(headers[k])})
	}
	return record
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
