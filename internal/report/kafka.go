package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/pcapnote/internal/config"
	"firestige.xyz/pcapnote/internal/log"
)

const (
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

// messageWriter is the part of *kafka.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter publishes records as JSON messages keyed by packet number.
type KafkaReporter struct {
	writer messageWriter
	topic  string

	reportedCount int
	errorCount    int
}

// NewKafkaReporter creates a synchronous kafka reporter. No connection is
// made until the first record is sent.
func NewKafkaReporter(cfg config.KafkaConfig) (*KafkaReporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	batchTimeout := defaultBatchTimeout
	if cfg.BatchTimeout != "" {
		d, err := time.ParseDuration(cfg.BatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid batch_timeout: %w", err)
		}
		batchTimeout = d
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: batchTimeout,
		MaxAttempts:  maxAttempts,
		Async:        false,
	}

	switch cfg.Compression {
	case "none", "":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	default:
		return nil, fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	return &KafkaReporter{
		writer: kafka.NewWriter(writerConfig),
		topic:  cfg.Topic,
	}, nil
}

// Name returns the sink name.
func (r *KafkaReporter) Name() string {
	return "kafka"
}

// Report sends one record.
func (r *KafkaReporter) Report(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	value, err := json.Marshal(rec)
	if err != nil {
		r.errorCount++
		return fmt.Errorf("serialize record failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%s", rec.Op, rec.PacketNumber)),
		Value: value,
		Time:  time.Now(),
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.errorCount++
		return fmt.Errorf("kafka write to %s failed: %w", r.topic, err)
	}
	r.reportedCount++
	return nil
}

// Close flushes and closes the writer.
func (r *KafkaReporter) Close() error {
	err := r.writer.Close()
	log.GetLogger().WithFields(map[string]interface{}{
		"topic":    r.topic,
		"reported": r.reportedCount,
		"errors":   r.errorCount,
	}).Debug("kafka reporter closed")
	return err
}
