package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/pkg/logger"
	"github.com/capitalize-ai/support-console/pkg/metrics"
)

const polishInstructions = "Reescribe la respuesta de soporte para que suene cercana y profesional. " +
	"Conserva todos los datos: números de pedido, fechas, transportistas y enlaces. " +
	"No agregues información nueva. Responde solo con el texto final."

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Polisher rewrites template replies with a language model.
type Polisher struct {
	client  Client
	timeout time.Duration
	logger  *logger.Logger
}

// NewPolisher creates a polisher. Timeout bounds every call.
func NewPolisher(client Client, timeout time.Duration, log *logger.Logger) *Polisher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Polisher{client: client, timeout: timeout, logger: log}
}

// Polish returns the rewritten text.
func (p *Polisher) Polish(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	collaborator := "llm_" + p.client.Name()
	resp, err := p.client.Complete(ctx, &CompletionRequest{
		System:      polishInstructions,
		Messages:    []ChatMessage{{Role: "user", Content: text}},
		Temperature: 0.3,
	})
	if err != nil {
		metrics.RecordCollaboratorRequest(collaborator, "error")
		return "", err
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		metrics.RecordCollaboratorRequest(collaborator, "empty")
		return "", ErrEmptyCompletion
	}
	metrics.RecordCollaboratorRequest(collaborator, "success")
	p.logger.Debug("suggestion polished",
		zap.String("model", resp.Model),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return out, nil
}
