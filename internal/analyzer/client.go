package analyzer

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/openai"
)

const defaultClientTimeout = 30 * time.Second

// ErrMissingAPIKey is returned by NewClient when no credentials are configured.
var ErrMissingAPIKey = errors.New("api key is not configured")

// ClientConfig describes the OpenAI-compatible endpoint.
type ClientConfig struct {
	APIKey             string
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewClient constructs the chat-completions client used for both models.
func NewClient(cfg ClientConfig) (*openai.LLM, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			// #nosec G402 -- opt-in via silicon-flow.insecure_skip_verify.
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
			TLSHandshakeTimeout: 15 * time.Second,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithHTTPClient(httpClient),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("construct model client: %w", err)
	}
	return llm, nil
}

// MaskKey keeps at most the first ten characters of a secret for log output.
func MaskKey(key string) string {
	const keep = 10
	key = strings.TrimSpace(key)
	if key == "" {
		return "(unset)"
	}
	if len(key) > keep {
		key = key[:keep]
	}
	return key + "..."
}
