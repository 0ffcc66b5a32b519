package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"fraudsim/internal/config"
	"fraudsim/internal/model"
)

// DefaultProbability is the fail-open score used when the scorer is
// unreachable or returns garbage: no fraud signal.
const DefaultProbability = 0.0

// Scorer returns a fraud probability in [0,1] for a feature payload. Errors
// indicate the caller should fall back to DefaultProbability; implementations
// never block past their configured timeouts.
type Scorer interface {
	Score(ctx context.Context, features model.ScoringFeatures) (float64, error)
}

// ScorerFunc adapts a function to the Scorer interface; used by tests.
type ScorerFunc func(ctx context.Context, features model.ScoringFeatures) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, features model.ScoringFeatures) (float64, error) {
	return f(ctx, features)
}

type scoreResponse struct {
	FraudProbability *float64 `json:"fraud_probability"`
	IsFraud          bool     `json:"is_fraud"`
}

// HTTPScorer calls a synchronous request/response scoring endpoint with a
// short connect timeout and a longer overall deadline.
type HTTPScorer struct {
	url    string
	client *http.Client
}

func NewHTTPScorer(cfg config.ScorerConfig) *HTTPScorer {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: connect}
	return &HTTPScorer{
		url: cfg.URL,
		client: &http.Client{
			Timeout: read,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: connect,
			},
		},
	}
}

func (s *HTTPScorer) Score(ctx context.Context, features model.ScoringFeatures) (float64, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return DefaultProbability, fmt.Errorf("encode features: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return DefaultProbability, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return DefaultProbability, fmt.Errorf("call scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DefaultProbability, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return DefaultProbability, fmt.Errorf("read scorer response: %w", err)
	}
	var decoded scoreResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return DefaultProbability, fmt.Errorf("decode scorer response: %w", err)
	}
	if decoded.FraudProbability == nil {
		return DefaultProbability, fmt.Errorf("scorer response missing fraud_probability")
	}
	p := *decoded.FraudProbability
	if p < 0 || p > 1 {
		return DefaultProbability, fmt.Errorf("scorer probability %v out of range", p)
	}
	return p, nil
}
