package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// RESTAdapter fetches a document from an HTTP endpoint.
type RESTAdapter struct {
	cfg     SourceConfig
	url     string
	method  string
	headers map[string]string
	client  *http.Client
}

// NewRESTAdapter builds an HTTP fetch adapter. Requires "url"; accepts
// optional "method", "headers" and "timeout_seconds".
func NewRESTAdapter(cfg SourceConfig) (Adapter, error) {
	url := cfg.String("url")
	if url == "" {
		return nil, domain.NewConfigurationError("rest adapter requires a \"url\" setting", nil)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, domain.NewConfigurationError(
			fmt.Sprintf("rest adapter url must be http(s), got %q", url), nil)
	}

	method := strings.ToUpper(cfg.StringOr("method", http.MethodGet))

	headers := make(map[string]string)
	if raw, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, domain.NewConfigurationError(
					fmt.Sprintf("rest adapter header %q must be a string", k), nil)
			}
			headers[k] = s
		}
	}

	timeout := 30 * time.Second
	if raw, ok := cfg["timeout_seconds"]; ok {
		switch v := raw.(type) {
		case int:
			timeout = time.Duration(v) * time.Second
		case float64:
			timeout = time.Duration(v * float64(time.Second))
		default:
			return nil, domain.NewConfigurationError(
				"rest adapter timeout_seconds must be numeric", nil)
		}
		if timeout <= 0 {
			return nil, domain.NewConfigurationError(
				"rest adapter timeout_seconds must be positive", nil)
		}
	}

	return &RESTAdapter{
		cfg:     cfg,
		url:     url,
		method:  method,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type restRaw struct {
	body        []byte
	statusCode  int
	contentType string
}

func (a *RESTAdapter) Collect(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, a.method, a.url, nil)
	if err != nil {
		return nil, domain.NewCollectionError("failed to build HTTP request", err)
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.NewCollectionError(
			fmt.Sprintf("request to %s failed", a.url), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewCollectionError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewCollectionError(
			fmt.Sprintf("endpoint %s returned status %d", a.url, resp.StatusCode), nil)
	}

	return &restRaw{
		body:        body,
		statusCode:  resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (a *RESTAdapter) Validate(ctx context.Context, raw any) (domain.ValidationResult, error) {
	r := raw.(*restRaw)

	result := domain.ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Metrics: map[string]any{
			"size_bytes":  len(r.body),
			"status_code": r.statusCode,
		},
	}

	if len(r.body) == 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, "response body is empty")
		return result, nil
	}
	if strings.Contains(r.contentType, "application/json") && !json.Valid(r.body) {
		result.IsValid = false
		result.Errors = append(result.Errors, "response declared JSON but is not valid JSON")
	}
	if r.contentType == "" {
		result.Warnings = append(result.Warnings, "response has no Content-Type header")
	}
	return result, nil
}

func (a *RESTAdapter) Transform(ctx context.Context, raw any) (any, error) {
	r := raw.(*restRaw)

	if strings.Contains(r.contentType, "application/json") || json.Valid(r.body) {
		var out any
		if err := json.Unmarshal(r.body, &out); err != nil {
			return nil, domain.NewTransformationError("failed to decode JSON response", err)
		}
		return out, nil
	}
	return string(r.body), nil
}

func (a *RESTAdapter) Cleanup(ctx context.Context, raw any) error {
	return nil
}
