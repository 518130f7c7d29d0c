package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/capitalize-ai/docsession/pkg/metrics"
)

const systemPrompt = "You help small businesses with their receipts, invoices and bank statements. " +
	"Answer briefly. If the question needs documents you cannot see, say so."

// Replier answers chat messages with an LLM. It has no access to the
// tenant's documents.
type Replier struct {
	client Client
	model  string
}

// NewReplier creates a replier on client.
func NewReplier(client Client, model string) *Replier {
	return &Replier{client: client, model: model}
}

// Reply returns the model's answer to text.
func (r *Replier) Reply(ctx context.Context, tenantID, text string) (string, error) {
	start := time.Now()
	resp, err := r.client.Complete(ctx, &CompletionRequest{
		Model:  r.model,
		System: systemPrompt,
		Messages: []ChatMessage{
			{Role: "user", Content: text},
		},
	})
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errors.New("empty completion")
	}
	metrics.RecordRemoteCall("llm."+r.client.Name(), err, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("llm reply for tenant %s: %w", tenantID, err)
	}
	return resp.Content, nil
}
