package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnsupportedProtocolDegrades(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: true, ServiceName: "mkp", Protocol: "thrift"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSamplerFromEnv(t *testing.T) {
	tests := []struct {
		sampler string
		arg     string
		want    string
	}{
		{sampler: "", want: trace.ParentBased(trace.AlwaysSample()).Description()},
		{sampler: "always_on", want: trace.AlwaysSample().Description()},
		{sampler: "always_off", want: trace.NeverSample().Description()},
		{sampler: "traceidratio", arg: "0.25", want: trace.TraceIDRatioBased(0.25).Description()},
		{sampler: "parentbased_traceidratio", arg: "bogus", want: trace.ParentBased(trace.TraceIDRatioBased(1)).Description()},
	}

	for _, tt := range tests {
		t.Run(tt.sampler, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLER", tt.sampler)
			t.Setenv("OTEL_TRACES_SAMPLER_ARG", tt.arg)
			assert.Equal(t, tt.want, samplerFromEnv().Description())
		})
	}
}
