package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tokenizer-service/cards"
	"tokenizer-service/clients/mercadopago"
	"tokenizer-service/logging"
	"tokenizer-service/models"
	"tokenizer-service/monitoring"
)

// Options configures a TokenizeService
type Options struct {
	// BaseURL of the card token API; defaults to the production host.
	BaseURL string
	// Timeout bounds each tier's HTTP call.
	Timeout           time.Duration
	TransactionAmount float64
	PayerEmail        string
}

// TokenizeService exchanges card data for a card token, degrading from the
// SDK client to a raw HTTP call and finally to a mock token.
type TokenizeService struct {
	tracer            trace.Tracer
	tiers             []tokenizer
	transactionAmount float64
	payerEmail        string
	now               func() time.Time
}

// NewTokenizeService creates a new tokenize service
func NewTokenizeService(tracer trace.Tracer, opts Options) *TokenizeService {
	if opts.BaseURL == "" {
		opts.BaseURL = mercadopago.DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = mercadopago.DefaultTimeout
	}
	if opts.TransactionAmount <= 0 {
		opts.TransactionAmount = 100.00
	}
	if opts.PayerEmail == "" {
		opts.PayerEmail = "test@test.com"
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   opts.Timeout,
	}

	return &TokenizeService{
		tracer: tracer,
		tiers: []tokenizer{
			&sdkTokenizer{baseURL: opts.BaseURL, client: httpClient},
			&directTokenizer{baseURL: opts.BaseURL, client: httpClient},
		},
		transactionAmount: opts.TransactionAmount,
		payerEmail:        opts.PayerEmail,
		now:               time.Now,
	}
}

// Tokenize always returns a response. Validation failures come back with
// Success=false; API failures are logged and replaced by the next tier.
func (s *TokenizeService) Tokenize(ctx context.Context, req *models.TokenizeRequest) *models.TokenizeResponse {
	ctx, span := s.tracer.Start(ctx, "tokenize_card")
	defer span.End()

	logger := logging.WithTraceContext(span)

	if !ValidateAccessToken(req.AccessToken) {
		logger.Warn("Rejected access token with unknown prefix")
		recordOutcome(ctx, span, "rejected", "none")
		return s.failure(InvalidAccessTokenMessage)
	}

	if missing := req.MissingCardFields(); len(missing) > 0 {
		logger.Warn("Missing required card information", zap.Strings("fields", missing))
		recordOutcome(ctx, span, "rejected", "none")
		return s.failure(MissingCardInfoMessage)
	}

	brand := cards.Brand(cards.Normalize(req.CardNumber))
	span.SetAttributes(
		attribute.String("card.brand", brand),
		attribute.Bool("tokenizer.test_environment", IsTestEnvironment(req.AccessToken)),
	)
	logger.Info("Tokenizing card",
		zap.String("card", cards.Mask(req.CardNumber)),
		zap.String("brand", brand),
		zap.String("holder", req.HolderName),
		zap.Bool("test_environment", IsTestEnvironment(req.AccessToken)),
	)

	for _, tier := range s.tiers {
		issued, err := s.attempt(ctx, tier, req)
		if errors.Is(err, errTokenNotCreated) {
			logger.Warn("Card token API issued no token",
				zap.String("tier", tier.Name()),
			)
			recordOutcome(ctx, span, "failed", tier.Name())
			return s.failure(TokenNotCreatedMessage)
		}
		if err != nil {
			logger.Warn("Tokenization tier failed, trying next",
				zap.String("tier", tier.Name()),
				zap.Error(err),
			)
			continue
		}

		logger.Info("Card tokenized",
			zap.String("tier", tier.Name()),
			zap.String("token_id", issued.ID),
		)
		recordOutcome(ctx, span, "success", tier.Name())
		return s.buildResponse(req, issued)
	}

	logger.Warn("All tokenization methods failed, generating mock token",
		zap.String("card", cards.Mask(req.CardNumber)),
	)
	recordOutcome(ctx, span, "mock", "mock")
	return s.mockResponse(req)
}

// attempt runs a single tier inside its own span and records its duration.
func (s *TokenizeService) attempt(ctx context.Context, tier tokenizer, req *models.TokenizeRequest) (*models.IssuedToken, error) {
	ctx, span := s.tracer.Start(ctx, "tokenize_card."+tier.Name())
	defer span.End()

	logging.Debug("Calling tokenization tier",
		zap.String("tier", tier.Name()),
		zap.String("card", cards.Mask(req.CardNumber)),
		zap.String("exp", req.ExpMonth+"/"+req.ExpYear),
		zap.String("holder", req.HolderName),
	)

	start := time.Now()
	issued, err := tier.Tokenize(ctx, req)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		monitoring.TierFailureCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("tier", tier.Name())),
		)
	}

	monitoring.ExternalCallDuration.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("tier", tier.Name()),
			attribute.String("status", status),
		),
	)

	return issued, err
}

func recordOutcome(ctx context.Context, span trace.Span, outcome, tier string) {
	monitoring.TokenizeCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("tier", tier),
		),
	)
	span.SetAttributes(
		attribute.String("tokenize.outcome", outcome),
		attribute.String("tokenize.tier", tier),
	)
}
