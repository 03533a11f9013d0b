// Package service runs the agent-assist pipeline: every customer message is
// classified, enriched with the customer's context and turned into reply
// suggestions for the agent.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/capitalize-ai/support-console/internal/autoresponse"
	"github.com/capitalize-ai/support-console/internal/customer"
	"github.com/capitalize-ai/support-console/internal/intent"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

// Defaults for the suggestion pipeline.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 10 * time.Second
	providerTimeout    = 2 * time.Second
)

// StatusSink receives provider push events, typically a fulfillment cache.
type StatusSink interface {
	Apply(ctx context.Context, ev model.Event) error
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithStatusSink forwards provider events to sink.
func WithStatusSink(sink StatusSink) Option {
	return func(a *Assistant) { a.status = sink }
}

// WithConcurrency bounds how many messages are processed at once.
func WithConcurrency(n int64) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithTimeout bounds the processing of one message.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) { a.timeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// Assistant produces suggestions for incoming customer messages.
type Assistant struct {
	classifier *intent.Classifier
	customers  customer.Source
	generator  *autoresponse.Generator
	status     StatusSink
	board      *Board
	logger     *logger.Logger

	sem     *semaphore.Weighted
	timeout time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates an assistant. customers may be nil, in which case suggestions
// are generated without customer context.
func New(classifier *intent.Classifier, customers customer.Source, generator *autoresponse.Generator, log *logger.Logger, opts ...Option) *Assistant {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Assistant{
		classifier: classifier,
		customers:  customers,
		generator:  generator,
		board:      NewBoard(),
		logger:     log.Named("assistant"),
		sem:        semaphore.NewWeighted(DefaultConcurrency),
		timeout:    DefaultTimeout,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Board returns the suggestion board.
func (a *Assistant) Board() *Board {
	return a.board
}

// Classify returns the intent of text.
func (a *Assistant) Classify(text string) model.Intent {
	return a.classifier.Classify(text)
}

// OnCustomerMessage schedules suggestion generation for msg.
func (a *Assistant) OnCustomerMessage(conv model.Conversation, msg model.Message) {
	seq := a.board.reserve(conv.ID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.sem.Acquire(a.ctx, 1); err != nil {
			return
		}
		defer a.sem.Release(1)

		set, err := a.Suggest(a.ctx, conv, msg)
		if err != nil {
			a.logger.WithConversation(conv.ID).Warn("suggestion generation failed",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			return
		}
		a.board.put(set, seq)
	}()
}

// Suggest runs the pipeline synchronously for one message.
func (a *Assistant) Suggest(ctx context.Context, conv model.Conversation, msg model.Message) (model.SuggestionSet, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	in := a.classifier.Classify(msg.Content)

	var cc *model.CustomerContext
	if a.customers != nil {
		if ref := conv.Customer(); ref.ID != "" {
			var err error
			cc, err = a.customers.Context(ctx, ref)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return model.SuggestionSet{}, err
				}
				// Suggestions degrade without context rather than fail.
				a.logger.WithConversation(conv.ID).Warn("customer context unavailable",
					zap.String("customer_id", ref.ID),
					zap.Error(err),
				)
				cc = nil
			}
		}
	}

	suggestions := a.generator.GenerateResponse(ctx, in, cc)
	return model.SuggestionSet{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Intent:         in,
		Suggestions:    suggestions,
		GeneratedAt:    a.now(),
	}, nil
}

// OnProviderEvent forwards a provider event to the status sink.
func (a *Assistant) OnProviderEvent(ev model.Event) {
	if a.status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, providerTimeout)
	defer cancel()
	if err := a.status.Apply(ctx, ev); err != nil {
		a.logger.Warn("provider event not applied",
			zap.String("event_type", string(ev.EventType())),
			zap.Error(err),
		)
	}
}

// Close stops pending work and waits for running pipelines.
func (a *Assistant) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
	a.board.Close()
}
