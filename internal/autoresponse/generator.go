// Package autoresponse turns a classified intent and the customer's context
// into ranked, confidence-gated reply suggestions.
package autoresponse

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/internal/fulfillment"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
	"github.com/capitalize-ai/support-console/pkg/metrics"
)

// Config gates and tunes generation.
type Config struct {
	Enabled        bool
	MinConfidence  float64
	AllowedIntents []model.IntentType
	// AutoSendThreshold is the confidence at or above which a risk-free
	// suggestion may be sent without review.
	AutoSendThreshold float64
	// FallbackPenalty scales confidence when live status was unavailable.
	FallbackPenalty float64
	StatusTimeout   time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		MinConfidence: 0.85,
		AllowedIntents: []model.IntentType{
			model.IntentTrackingNumber,
			model.IntentDeliveryProblem,
			model.IntentDeliveryDate,
			model.IntentOrderStatus,
			model.IntentReturnRequest,
			model.IntentStockInquiry,
			model.IntentCancellation,
			model.IntentAddressChange,
		},
		AutoSendThreshold: 0.9,
		FallbackPenalty:   0.75,
		StatusTimeout:     5 * time.Second,
	}
}

// Polisher rewrites customer-facing text, e.g. to adjust tone.
type Polisher interface {
	Polish(ctx context.Context, text string) (string, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithPolisher rewrites the customer-facing text of every suggestion.
func WithPolisher(p Polisher) Option {
	return func(g *Generator) { g.polisher = p }
}

// WithClock overrides the time source used for delay detection.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// Generator produces reply suggestions.
type Generator struct {
	cfg      Config
	allowed  map[model.IntentType]bool
	status   fulfillment.Provider
	polisher Polisher
	logger   *logger.Logger
	now      func() time.Time
}

// New creates a generator. status may be nil when no fulfillment provider is
// configured; cached order fields are used instead.
func New(cfg Config, status fulfillment.Provider, log *logger.Logger, opts ...Option) *Generator {
	if cfg.FallbackPenalty <= 0 || cfg.FallbackPenalty > 1 {
		cfg.FallbackPenalty = 0.75
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 5 * time.Second
	}
	g := &Generator{
		cfg:     cfg,
		allowed: make(map[model.IntentType]bool, len(cfg.AllowedIntents)),
		status:  status,
		logger:  log,
		now:     time.Now,
	}
	for _, t := range cfg.AllowedIntents {
		g.allowed[t] = true
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allows reports whether an intent passes the global gate.
func (g *Generator) Allows(in model.Intent) bool {
	return g.cfg.Enabled && in.Confidence >= g.cfg.MinConfidence && g.allowed[in.Type]
}

// GenerateResponse returns suggestions ranked by confidence, or none when the
// intent is gated out. cc may be nil when the customer context could not be
// fetched.
func (g *Generator) GenerateResponse(ctx context.Context, in model.Intent, cc *model.CustomerContext) []model.Suggestion {
	if !g.Allows(in) {
		return nil
	}

	ctx, span := otel.Tracer("autoresponse").Start(ctx, "GenerateResponse")
	defer span.End()
	span.SetAttributes(
		attribute.String("intent", string(in.Type)),
		attribute.Float64("confidence", in.Confidence),
	)

	var out []model.Suggestion
	switch in.Type {
	case model.IntentReturnRequest:
		out = returnSuggestions(in, cc)
	case model.IntentStockInquiry:
		out = stockSuggestions(in, cc)
	case model.IntentGeneral:
		out = generalSuggestions(in, cc)
	default:
		out = g.orderSuggestions(ctx, in, cc)
	}

	for i := range out {
		g.finalize(ctx, &out[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// requiresReview lists intents whose replies commit the shop to an action an
// agent must carry out.
var requiresReview = map[model.IntentType]bool{
	model.IntentDeliveryProblem: true,
	model.IntentCancellation:    true,
	model.IntentAddressChange:   true,
}

// orderView is the best known state of the order a suggestion talks about.
type orderView struct {
	order       model.Order
	status      string
	tracking    model.Shipment
	hasTracking bool
	estMin      *time.Time
	estMax      *time.Time
	source      model.StatusSource
	degraded    bool
}

// delayed applies the provider rule: past the maximum estimate and not
// fulfilled. Order-level statuses such as "shipped" do not count as fulfilled.
func (v orderView) delayed(now time.Time) bool {
	return fulfillment.IsDelayed(v.estMax, v.status, now)
}

func (g *Generator) orderSuggestions(ctx context.Context, in model.Intent, cc *model.CustomerContext) []model.Suggestion {
	view, ok := g.resolveOrder(ctx, in, cc)
	if !ok {
		return []model.Suggestion{missingOrderSuggestion(in, cc)}
	}

	confidence := in.Confidence
	if view.degraded {
		confidence *= g.cfg.FallbackPenalty
	}
	delayed := view.delayed(g.now())

	var out []model.Suggestion
	switch in.Type {
	case model.IntentTrackingNumber:
		out = trackingSuggestions(in, cc, view, confidence)
	case model.IntentDeliveryDate:
		out = deliveryDateSuggestions(in, cc, view, confidence)
	case model.IntentDeliveryProblem:
		out = deliveryProblemSuggestions(in, cc, view, confidence)
	case model.IntentCancellation:
		out = cancellationSuggestions(in, cc, view, confidence)
	case model.IntentAddressChange:
		out = addressChangeSuggestions(in, cc, view, confidence)
	default:
		out = orderStatusSuggestions(in, cc, view, confidence)
	}

	if delayed {
		out = append(out, delaySuggestion(in, cc, view, confidence, g.now()))
		for i := range out {
			markDelayed(&out[i])
		}
	}
	return out
}

func (g *Generator) resolveOrder(ctx context.Context, in model.Intent, cc *model.CustomerContext) (orderView, bool) {
	if cc == nil {
		return orderView{}, false
	}

	var order model.Order
	var ok bool
	if in.ExtractedFields.OrderID != 0 {
		order, ok = cc.FindOrder(in.ExtractedFields.OrderID)
	} else {
		order, ok = cc.LatestActiveOrder()
	}
	if !ok {
		return orderView{}, false
	}

	view := orderView{
		order:  order,
		status: order.Status,
		estMin: order.EstimatedDeliveryMin,
		estMax: order.EstimatedDeliveryMax,
		source: model.SourceCached,
	}
	if order.FulfillmentStatus != "" {
		view.status = order.FulfillmentStatus
	}
	if order.TrackingNumber != "" {
		view.tracking = model.Shipment{Carrier: order.Carrier, TrackingNumber: order.TrackingNumber, TrackingURL: order.TrackingURL}
		view.hasTracking = true
	}

	if order.ExternalID == "" || g.status == nil {
		return view, true
	}

	statusCtx, cancel := context.WithTimeout(ctx, g.cfg.StatusTimeout)
	defer cancel()
	live, err := g.status.OrderStatus(statusCtx, order.ExternalID)
	if err != nil || live == nil {
		g.logger.Warn("live fulfillment status unavailable, using cached order fields",
			zap.Int64("order_id", order.ID),
			zap.String("external_id", order.ExternalID),
			zap.Error(err),
		)
		view.degraded = true
		return view, true
	}

	view.source = model.SourceLive
	view.status = live.Status
	if live.EstimatedDeliveryMin != nil {
		view.estMin = live.EstimatedDeliveryMin
	}
	if live.EstimatedDeliveryMax != nil {
		view.estMax = live.EstimatedDeliveryMax
	}
	if s, ok := fulfillment.TrackingOf(live); ok {
		view.tracking = s
		view.hasTracking = true
	}
	return view, true
}

func (g *Generator) finalize(ctx context.Context, s *model.Suggestion) {
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	risky := s.Metadata.Delayed || requiresReview[s.Metadata.Intent]
	s.CanSendAutomatically = !risky && s.Confidence >= g.cfg.AutoSendThreshold

	if g.polisher != nil {
		if polished, err := g.polisher.Polish(ctx, s.Text); err != nil {
			g.logger.Warn("suggestion polishing failed, keeping template", zap.Error(err))
		} else if strings.TrimSpace(polished) != "" {
			s.Text = polished
		}
	}

	metrics.RecordSuggestion(string(s.Metadata.Intent), s.CanSendAutomatically)
}
