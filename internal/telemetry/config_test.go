package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())

	cfg = &Config{
		ServiceName:    "custom-service",
		ServiceVersion: "1.2.3",
		Endpoint:       "collector:4318",
	}
	assert.Equal(t, "custom-service", cfg.GetServiceName())
	assert.Equal(t, "1.2.3", cfg.GetServiceVersion())
	assert.Equal(t, "collector:4318", cfg.GetEndpoint())
}

func TestTracingConfigSampling(t *testing.T) {
	t.Parallel()

	tc := &TracingConfig{}
	assert.Equal(t, DefaultSampling, tc.GetSampling())

	tc = &TracingConfig{Sampling: 0.5}
	assert.Equal(t, 0.5, tc.GetSampling())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "nil config is valid",
			config:  nil,
			wantErr: false,
		},
		{
			name:    "disabled config is valid",
			config:  &Config{Enabled: false},
			wantErr: false,
		},
		{
			name: "enabled with valid tracing",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 0.1},
			},
			wantErr: false,
		},
		{
			name: "sampling above range",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
			},
			wantErr: true,
		},
		{
			name: "sampling below range",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: -0.1},
			},
			wantErr: true,
		},
		{
			name: "disabled tracing skips sampling validation",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: false, Sampling: 5.0},
			},
			wantErr: false,
		},
		{
			name: "enabled with metrics",
			config: &Config{
				Enabled: true,
				Metrics: &MetricsConfig{Enabled: true},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
