package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff_GrowsAndCaps(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 8*time.Second, cfg.CalculateBackoff(3))
	assert.Equal(t, time.Minute, cfg.CalculateBackoff(10))
	assert.Equal(t, time.Minute, cfg.CalculateBackoff(100))
}

func TestStream_DLQStream(t *testing.T) {
	assert.Equal(t, "dlq:stream:kb:ingest", StreamKBIngest.DLQStream())
}

func TestMessage_PayloadRoundTrip(t *testing.T) {
	job := &IngestJobMessage{
		DocumentID: "doc-1",
		TenantID:   "tenant-a",
		Text:       "正文内容",
	}

	msg, err := NewMessage(job.DocumentID, MessageTypeDocumentIngest, job.TenantID, job.DocumentID, job)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", msg.ID)
	assert.Equal(t, "tenant-a", msg.TenantID)

	var decoded IngestJobMessage
	require.NoError(t, msg.UnmarshalPayload(&decoded))
	assert.Equal(t, *job, decoded)
}

func TestMessage_Metadata(t *testing.T) {
	msg := &Message{}
	assert.Equal(t, "", msg.GetMetadata("request_id"))

	msg.SetMetadata("request_id", "req-1")
	assert.Equal(t, "req-1", msg.GetMetadata("request_id"))
}
