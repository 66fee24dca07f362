package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/efreitasn/stocksim/internal/clients/mlpredict"
	"github.com/efreitasn/stocksim/internal/domain"
)

const (
	predictionUnavailableMessage = "ML prediction service is not available. Please ensure the prediction server is running and try again."
	predictionFailedMessage      = "Stock prediction failed. Please try again later."
)

// Predictor is the prediction server contract.
type Predictor interface {
	Predict(ctx context.Context, ticker string) (*mlpredict.Prediction, error)
	Health(ctx context.Context) error
}

// PredictionResult is a next-day price prediction in rupees.
type PredictionResult struct {
	Ticker         string
	CurrentPrice   float64
	PredictedPrice float64
	PercentChange  float64
	Explanation    string
	UsingMockData  bool
}

// PredictionService forwards prediction requests to the ML server.
type PredictionService struct {
	client        Predictor
	healthRetries int
	newBackOff    func() backoff.BackOff
	logger        *slog.Logger
}

// NewPredictionService creates a new PredictionService. healthRetries
// bounds how many times Health retries a failed probe.
func NewPredictionService(client Predictor, healthRetries int, logger *slog.Logger) *PredictionService {
	return &PredictionService{
		client:        client,
		healthRetries: healthRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger: logger,
	}
}

// Predict validates the ticker and asks the ML server for a prediction.
// Failures are *domain.UpstreamFailure wrapping either
// domain.ErrUpstreamUnavailable or domain.ErrUpstreamError.
func (s *PredictionService) Predict(ctx context.Context, ticker string) (*PredictionResult, error) {
	ticker = domain.NormalizeSymbol(ticker)
	if ticker == "" {
		return nil, &domain.ValidationError{Message: "ticker is required"}
	}
	if !domain.ValidSymbol(ticker) {
		return nil, &domain.ValidationError{Message: "ticker must be an NSE/BSE symbol such as TCS.NS"}
	}

	p, err := s.client.Predict(ctx, ticker)
	if err != nil {
		s.logger.Warn("prediction failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, mlpredict.ErrUnreachable) {
			return nil, &domain.UpstreamFailure{
				Kind:    domain.ErrUpstreamUnavailable,
				Message: predictionUnavailableMessage,
				Cause:   err,
			}
		}
		return nil, &domain.UpstreamFailure{
			Kind:    domain.ErrUpstreamError,
			Message: predictionFailedMessage,
			Cause:   err,
		}
	}

	return &PredictionResult{
		Ticker:         ticker,
		CurrentPrice:   p.CurrentPrice,
		PredictedPrice: p.PredictedPrice,
		PercentChange:  p.PercentChange,
		Explanation:    p.Explanation,
		UsingMockData:  p.UsingMockData,
	}, nil
}

// Health probes the ML server, retrying with exponential backoff.
func (s *PredictionService) Health(ctx context.Context) bool {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.healthRetries)), ctx)

	err := backoff.Retry(func() error {
		return s.client.Health(ctx)
	}, b)
	if err != nil {
		s.logger.Warn("prediction server unhealthy", slog.String("error", err.Error()))
		return false
	}
	return true
}
