package config

import (
	"encoding/json"
	"fmt"
)

// TelemetryConfig holds OTLP trace export settings.
//
// Export goes to a local collector over OTLP/HTTP; see
// internal/observability for the tracer provider setup.
type TelemetryConfig struct {
	// Enabled turns trace export on. Off by default; the TUI works fully
	// without a collector.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the collector OTLP/HTTP endpoint (default: localhost:4318).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// APIKey is forwarded to the collector when set.
	// SENSITIVE: masked in MarshalJSON.
	APIKey string `mapstructure:"api_key" json:"api_key"`
	// Environment tags exported spans (default: dev).
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName names the service in traces (default: maquette).
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// MarshalJSON masks the API key.
func (t TelemetryConfig) MarshalJSON() ([]byte, error) {
	type alias TelemetryConfig
	a := alias(t)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry config: %w", err)
	}
	return data, nil
}
