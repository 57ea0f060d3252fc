package neural

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/internal/logger"
)

// HTTPRegressor calls a scoring service that accepts
//
//	{"model": "...", "data": [{"src": "...", "mt": "...", "ref": "..."}]}
//
// and answers {"scores": [...]} in input order.
type HTTPRegressor struct {
	endpoint   string
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

var _ api.Regressor = (*HTTPRegressor)(nil)

// HTTPOption configures the HTTPRegressor during construction.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	model      string
	log        *logger.Logger
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(cfg *httpConfig) { cfg.httpClient = c }
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(cfg *httpConfig) { cfg.timeout = d }
}

// WithModel names the checkpoint the service should use.
func WithModel(model string) HTTPOption {
	return func(cfg *httpConfig) { cfg.model = model }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *logger.Logger) HTTPOption {
	return func(cfg *httpConfig) { cfg.log = l }
}

// NewHTTPRegressor creates a client for endpoint.
func NewHTTPRegressor(endpoint string, opts ...HTTPOption) (*HTTPRegressor, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("scoring endpoint is required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("scoring endpoint %q is not an http(s) URL", endpoint)
	}
	cfg := &httpConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}
	log := cfg.log
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPRegressor{
		endpoint:   endpoint,
		model:      cfg.model,
		httpClient: httpClient,
		log:        log,
	}, nil
}

type scoreItem struct {
	Src string `json:"src,omitempty"`
	MT  string `json:"mt"`
	Ref string `json:"ref"`
}

type scoreRequest struct {
	Model string      `json:"model,omitempty"`
	Data  []scoreItem `json:"data"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scoring service returned %d: %s", e.StatusCode, e.Message)
}

func (h *HTTPRegressor) Predict(ctx context.Context, inputs []api.ScoreInputs) ([]float64, error) {
	body := scoreRequest{Model: h.model, Data: make([]scoreItem, len(inputs))}
	for i, in := range inputs {
		body.Data[i] = scoreItem{Src: in.Input, MT: in.Output, Ref: in.Expected}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	h.log.Debug("scoring request", "url", h.endpoint, "rows", len(inputs))
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var errRS scoreResponse
		if json.Unmarshal(respBody, &errRS) == nil && errRS.Error != "" {
			return nil, &StatusError{StatusCode: resp.StatusCode, Message: errRS.Error}
		}
		msg := string(respBody)
		if msg == "" {
			msg = resp.Status
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Scores) != len(inputs) {
		return nil, fmt.Errorf("scoring service returned %d scores for %d inputs", len(out.Scores), len(inputs))
	}
	return out.Scores, nil
}
