package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisher_LogsInsteadOfSending(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	err := p.PublishOutreach(context.Background(), OutreachPayload{
		Kind:       KindOutreach,
		ProspectID: "p-1",
		To:         "hola@cafe.pe",
		Subject:    "Una idea para Café Lima",
	})
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "outreach", fields["kind"])
	assert.Equal(t, "hola@cafe.pe", fields["to"])
}
