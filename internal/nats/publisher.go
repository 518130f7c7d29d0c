package nats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

const publishTimeout = 2 * time.Second

// Publisher journals notices. Publishing never fails the caller; errors are
// logged.
type Publisher struct {
	streams *StreamManager
	logger  *logger.Logger
}

// NewPublisher creates a notice publisher.
func NewPublisher(streams *StreamManager, log *logger.Logger) *Publisher {
	return &Publisher{streams: streams, logger: log.Named("notices")}
}

// Notify publishes n to the journal.
func (p *Publisher) Notify(ctx context.Context, n model.Notice) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if _, err := p.streams.PublishNotice(ctx, n); err != nil {
		p.logger.Warn("failed to journal notice",
			zap.String("principal", n.Principal),
			zap.String("level", string(n.Level)),
			zap.Error(err),
		)
	}
}
