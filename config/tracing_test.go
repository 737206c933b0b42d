package config

import (
	"io"
	"testing"

	"github.com/akeren/waitlist-intake/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOTLPEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		hostport string
		path     string
		insecure bool
		wantErr  bool
	}{
		{raw: "http://collector:4318", hostport: "collector:4318", path: "/v1/traces", insecure: true},
		{raw: "https://otel.example.com/custom/traces", hostport: "otel.example.com", path: "/custom/traces"},
		{raw: "collector:4318", hostport: "collector:4318", path: "/v1/traces", insecure: true},
		{raw: "collector:4318/v1/traces", wantErr: true},
		{raw: "grpc://collector:4317", wantErr: true},
		{raw: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			hostport, path, insecure, err := parseOTLPEndpoint(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hostport)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.insecure, insecure)
		})
	}
}

func TestParseSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, parseSampleRatio(""))
	assert.Equal(t, 1.0, parseSampleRatio("half"))
	assert.Equal(t, 0.25, parseSampleRatio("0.25"))
	assert.Equal(t, 0.0, parseSampleRatio("-3"))
	assert.Equal(t, 1.0, parseSampleRatio("7"))
}

func TestSetupTracing_DisabledReturnsNil(t *testing.T) {
	t.Setenv("OTEL_TRACES_ENABLED", "false")

	shutdown, err := SetupTracing(log.NewLogger(io.Discard))
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}
