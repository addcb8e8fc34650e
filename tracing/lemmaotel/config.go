/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lemmaotel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// DefaultBaseURL is the Lemma API used when LEMMA_API_URL is unset.
const DefaultBaseURL = "https://api.uselemma.ai"

// Supported OTLP protocols.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// ErrMissingCredentials is returned when the API key or project ID is unset.
var ErrMissingCredentials = errors.New("missing API key and/or project ID; set LEMMA_API_KEY and LEMMA_PROJECT_ID")

// Config describes where and how spans are shipped.
type Config struct {
	APIKey    string `env:"LEMMA_API_KEY"`
	ProjectID string `env:"LEMMA_PROJECT_ID"`
	BaseURL   string `env:"LEMMA_API_URL,default=https://api.uselemma.ai"`

	// Protocol selects the OTLP transport: "http" (the Lemma ingest API) or
	// "grpc" (typically a local collector).
	Protocol string `env:"LEMMA_OTLP_PROTOCOL,default=http"`
	Insecure bool   `env:"LEMMA_OTLP_INSECURE,default=false"`

	ServiceName string `env:"OTEL_SERVICE_NAME,default=lemma-agent"`
}

// Load reads the configuration from the environment.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the configuration from the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("processing config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// Validate checks that the configuration can be used to export spans.
func (c Config) Validate() error {
	if c.APIKey == "" || c.ProjectID == "" {
		return ErrMissingCredentials
	}
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	switch c.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return fmt.Errorf("unsupported OTLP protocol %q, must be %q or %q", c.Protocol, ProtocolHTTP, ProtocolGRPC)
	}
	return nil
}

// TracesEndpoint returns the OTLP/HTTP traces endpoint.
func (c Config) TracesEndpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + "/otel/v1/traces"
}

// Headers returns the headers that authenticate exports.
func (c Config) Headers() map[string]string {
	return map[string]string{
		"Authorization":      "Bearer " + c.APIKey,
		"X-Lemma-Project-ID": c.ProjectID,
	}
}
