package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommaList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: []string{}},
		{name: "only separators", raw: " , ,, ", want: []string{}},
		{name: "trims entries", raw: " https://a.example ,https://b.example", want: []string{"https://a.example", "https://b.example"}},
		{name: "keeps duplicates", raw: "x,x", want: []string{"x", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCommaList(tt.raw))
		})
	}
}

func TestGetEnvPositiveInt(t *testing.T) {
	t.Setenv("TEST_LIMIT", "42")
	assert.Equal(t, 42, GetEnvPositiveInt("TEST_LIMIT", 20))

	t.Setenv("TEST_LIMIT", "-1")
	assert.Equal(t, 20, GetEnvPositiveInt("TEST_LIMIT", 20))

	t.Setenv("TEST_LIMIT", "abc")
	assert.Equal(t, 20, GetEnvPositiveInt("TEST_LIMIT", 20))
}

func TestGetEnvPositiveDuration(t *testing.T) {
	t.Setenv("TEST_WINDOW", "90s")
	assert.Equal(t, 90*time.Second, GetEnvPositiveDuration("TEST_WINDOW", time.Hour))

	t.Setenv("TEST_WINDOW", "0s")
	assert.Equal(t, time.Hour, GetEnvPositiveDuration("TEST_WINDOW", time.Hour))
}

func TestTracingEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_ENABLED", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.False(t, IsTracingEnabled())
	assert.Equal(t, "waitlist-intake", OTelServiceName())

	t.Setenv("OTEL_TRACES_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", " intake-eu ")
	assert.True(t, IsTracingEnabled())
	assert.Equal(t, "intake-eu", OTelServiceName())

	t.Setenv("OTEL_TRACES_ENABLED", "maybe")
	assert.False(t, IsTracingEnabled())
}
