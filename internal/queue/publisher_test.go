package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
)

type capturingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *capturingWriter) Close() error {
	w.closed = true
	return nil
}

func TestEnqueuePublishesJob(t *testing.T) {
	writer := &capturingWriter{}
	p := &ExtractionPublisher{writer: writer, enabled: true, logger: zerolog.Nop()}

	sourceID := uuid.New()
	err := p.Enqueue(context.Background(), sourceID, "https://example.org/paper.pdf", PriorityHigh)
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, sourceID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "priority", msg.Headers[0].Key)
	assert.Equal(t, "high", string(msg.Headers[0].Value))

	var job ExtractionJob
	require.NoError(t, json.Unmarshal(msg.Value, &job))
	assert.Equal(t, sourceID, job.SourceID)
	assert.Equal(t, "https://example.org/paper.pdf", job.ContentURL)
	assert.Equal(t, PriorityHigh, job.Priority)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestEnqueueDefaultsPriority(t *testing.T) {
	writer := &capturingWriter{}
	p := &ExtractionPublisher{writer: writer, enabled: true, logger: zerolog.Nop()}

	err := p.Enqueue(context.Background(), uuid.New(), "https://example.org/a.pdf", "")
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	var job ExtractionJob
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &job))
	assert.Equal(t, PriorityNormal, job.Priority)
}

func TestEnqueueValidation(t *testing.T) {
	p := &ExtractionPublisher{writer: &capturingWriter{}, enabled: true, logger: zerolog.Nop()}

	err := p.Enqueue(context.Background(), uuid.Nil, "https://example.org/a.pdf", PriorityNormal)
	assert.Error(t, err)

	err = p.Enqueue(context.Background(), uuid.New(), "", PriorityNormal)
	assert.Error(t, err)
}

func TestEnqueueDisabledDropsSilently(t *testing.T) {
	p := NewExtractionPublisher(config.KafkaConfig{Enabled: false}, zerolog.Nop())

	err := p.Enqueue(context.Background(), uuid.New(), "https://example.org/a.pdf", PriorityNormal)
	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestCloseClosesWriter(t *testing.T) {
	writer := &capturingWriter{}
	p := &ExtractionPublisher{writer: writer, enabled: true, logger: zerolog.Nop()}

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}
