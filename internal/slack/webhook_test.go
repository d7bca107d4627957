package slack

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildPayload(t *testing.T) {
	payload, err := BuildPayload(Message{
		Text:     "failover detected",
		Markdown: "*Failover Detected*\n• From: *BLUE* pool",
		Fields: map[string]any{
			"category": "failover",
			"ratio":    0.025,
			"to.pool":  "green",
			"window":   200,
		},
	})
	require.NoError(t, err)

	doc := gjson.ParseBytes(payload)
	assert.Equal(t, "failover detected", doc.Get("text").String())
	assert.Equal(t, "section", doc.Get("blocks.0.type").String())
	assert.Equal(t, "mrkdwn", doc.Get("blocks.0.text.type").String())
	assert.Contains(t, doc.Get("blocks.0.text.text").String(), "*BLUE*")
	assert.Equal(t, "pool_watch_alert", doc.Get("metadata.event_type").String())
	assert.Equal(t, "failover", doc.Get("metadata.event_payload.category").String())
	assert.Equal(t, 0.025, doc.Get("metadata.event_payload.ratio").Float())
	assert.Equal(t, int64(200), doc.Get("metadata.event_payload.window").Int())
	assert.Equal(t, "green", doc.Get(`metadata.event_payload.to\.pool`).String())
}

func TestBuildPayloadFallsBackToText(t *testing.T) {
	payload, err := BuildPayload(Message{Text: "plain"})
	require.NoError(t, err)
	doc := gjson.ParseBytes(payload)
	assert.Equal(t, "plain", doc.Get("blocks.0.text.text").String())
	assert.True(t, doc.Get("metadata.event_payload").IsObject())
}

func TestSend(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL).Send(context.Background(), Message{Text: "hello"}))
	assert.Equal(t, "hello", gjson.GetBytes(body, "text").String())
}

func TestSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Send(context.Background(), Message{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestSendEmptyURL(t *testing.T) {
	require.Error(t, NewWebhook("").Send(context.Background(), Message{Text: "x"}))
}
