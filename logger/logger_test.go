package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{
			name: "payment token is redacted",
			in:   []interface{}{"payment_token", "valid_dummy_token", "order_id", "abc"},
			want: []interface{}{"payment_token", "[REDACTED]", "order_id", "abc"},
		},
		{
			name: "tracking number is kept",
			in:   []interface{}{"tracking_number", "1Z999"},
			want: []interface{}{"tracking_number", "1Z999"},
		},
		{
			name: "odd trailing key is kept",
			in:   []interface{}{"design_id", "d1", "dangling"},
			want: []interface{}{"design_id", "d1", "dangling"},
		},
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeKVs(tt.in))
		})
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.With("component", "analysis").Info("design analyzed", "authorization", "Bearer x")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "design analyzed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "analysis", fields["component"])
	assert.Equal(t, "[REDACTED]", fields["authorization"])
}

func TestNew(t *testing.T) {
	log, err := New("debug", false)
	require.NoError(t, err)
	assert.NotNil(t, log.SugaredLogger)

	log, err = New("not-a-level", true)
	require.NoError(t, err)
	assert.NotNil(t, log.SugaredLogger)
}
