package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/docsession/internal/model"
)

const (
	// StreamName is the name of the notices stream.
	StreamName = "SESSION_NOTICES"

	// SubjectPrefix is the prefix for all notice subjects.
	SubjectPrefix = "notice"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the notices stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:              StreamName,
		Subjects:          []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:         jetstream.LimitsPolicy,
		MaxAge:            7 * 24 * time.Hour,
		MaxMsgsPerSubject: 1000,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Description:       "User-visible notices raised by session containers",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// token makes s safe to use as one subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// NoticeSubject returns the subject for a notice.
func NoticeSubject(principal string, level model.NoticeLevel) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, token(principal), level)
}

// PrincipalFilter returns the filter subject for all notices of a principal.
func PrincipalFilter(principal string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, token(principal))
}

// PublishNotice publishes a notice to JetStream.
func (m *StreamManager) PublishNotice(ctx context.Context, n model.Notice) (uint64, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal notice: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, NoticeSubject(n.Principal, n.Level), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish notice: %w", err)
	}

	return ack.Sequence, nil
}

// Notices returns up to limit notices of a principal after a stream sequence.
func (m *StreamManager) Notices(ctx context.Context, principal string, afterSequence uint64, limit int) ([]model.Notice, uint64, bool, error) {
	if limit <= 0 {
		limit = 50
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject:     PrincipalFilter(principal),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: 30 * time.Second,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := m.client.JetStream().CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	maxWait := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < maxWait {
			maxWait = d
		}
	}
	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch notices: %w", err)
	}

	notices := make([]model.Notice, 0, limit)
	lastSequence := afterSequence
	for msg := range batch.Messages() {
		var n model.Notice
		if err := json.Unmarshal(msg.Data(), &n); err != nil {
			m.client.logger.Warn("skipping malformed notice")
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			n.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}
		notices = append(notices, n)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return notices, lastSequence, len(notices) == limit, nil
}
