package backup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

func ducklingConfig(url string) config.BackupConfig {
	cfg := config.Default().Backup
	cfg.URL = url
	cfg.RatePerMinute = 6000 // effectively unlimited in tests
	return cfg
}

func TestDucklingRecognizer_Recognize(t *testing.T) {
	var gotReq recognizeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(recognizeResponse{
			Candidates: []recognizeCandidate{
				{Value: "2026-03-13T14:00:00Z", Start: 0, End: 15, Confidence: 0.75, Grain: "minute", HasTimezone: true},
				{Value: "", Start: 0, End: 5, Confidence: 0.9}, // empty value dropped
			},
		})
	}))
	defer server.Close()

	d := NewDucklingRecognizer(ducklingConfig(server.URL))
	ref := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	results, err := d.Recognize(context.Background(), "tomorrow at 2pm", event.FieldStart, ref, "UTC")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "2026-03-13T14:00:00Z", results[0].Value)
	assert.Equal(t, event.GrainMinute, results[0].Grain)
	assert.True(t, results[0].HasTimezone)

	assert.Equal(t, "time", gotReq.Dimension)
	assert.Equal(t, "tomorrow at 2pm", gotReq.Text)
	assert.Equal(t, "UTC", gotReq.Timezone)
	assert.Equal(t, "2026-03-12T10:00:00Z", gotReq.ReferenceTime)
}

func TestDucklingRecognizer_UnmappedFieldIsNoop(t *testing.T) {
	d := NewDucklingRecognizer(ducklingConfig("http://127.0.0.1:1"))

	// Title has no recognizer dimension; no network call is made.
	results, err := d.Recognize(context.Background(), "standup", event.FieldTitle, time.Now(), "UTC")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDucklingRecognizer_RetriesOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(recognizeResponse{
			Candidates: []recognizeCandidate{{Value: "ok", Start: 0, End: 2, Confidence: 0.7}},
		})
	}))
	defer server.Close()

	d := NewDucklingRecognizer(ducklingConfig(server.URL))
	results, err := d.Recognize(context.Background(), "ok", event.FieldLocation, time.Now(), "UTC")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDucklingRecognizer_ErrorAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewDucklingRecognizer(ducklingConfig(server.URL))
	_, err := d.Recognize(context.Background(), "text", event.FieldStart, time.Now(), "UTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
