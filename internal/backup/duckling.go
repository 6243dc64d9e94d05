package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

// dimensionFor maps event fields to recognizer dimensions. Fields with no
// mapping are not recognizable by this service.
var dimensionFor = map[event.Field]string{
	event.FieldStart:      "time",
	event.FieldEnd:        "time",
	event.FieldRecurrence: "recurrence",
	event.FieldLocation:   "location",
}

// DucklingRecognizer calls a Duckling-style rule-based temporal grammar
// service over HTTP.
type DucklingRecognizer struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDucklingRecognizer creates a recognizer client from configuration.
func NewDucklingRecognizer(cfg config.BackupConfig) *DucklingRecognizer {
	return &DucklingRecognizer{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60.0), 5),
	}
}

// Name implements Recognizer.
func (d *DucklingRecognizer) Name() string {
	return "duckling"
}

// recognizeRequest is the wire request to the recognizer service.
type recognizeRequest struct {
	Text          string `json:"text"`
	Dimension     string `json:"dimension"`
	ReferenceTime string `json:"reference_time"`
	Timezone      string `json:"timezone"`
}

// recognizeCandidate is one span the service attributed to the dimension.
type recognizeCandidate struct {
	Value       string  `json:"value"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Confidence  float64 `json:"confidence"`
	Grain       string  `json:"grain,omitempty"`
	HasTimezone bool    `json:"has_timezone,omitempty"`
}

// recognizeResponse is the wire response from the recognizer service.
type recognizeResponse struct {
	Candidates []recognizeCandidate `json:"candidates"`
}

// Recognize implements Recognizer. One retry on transport failure, then
// the error surfaces to the registry for degrade-to-empty handling.
func (d *DucklingRecognizer) Recognize(ctx context.Context, text string, field event.Field, ref time.Time, tz string) ([]event.FieldResult, error) {
	dimension, ok := dimensionFor[field]
	if !ok {
		return nil, nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(recognizeRequest{
		Text:          text,
		Dimension:     dimension,
		ReferenceTime: ref.Format(time.RFC3339),
		Timezone:      tz,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		results, err := d.doRequest(ctx, payload)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (d *DucklingRecognizer) doRequest(ctx context.Context, payload []byte) ([]event.FieldResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognizer error (%d): %s", resp.StatusCode, string(body))
	}

	var decoded recognizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := make([]event.FieldResult, 0, len(decoded.Candidates))
	for _, c := range decoded.Candidates {
		if c.Value == "" || c.End <= c.Start {
			continue
		}
		out = append(out, event.FieldResult{
			Value:       c.Value,
			Confidence:  c.Confidence,
			Span:        event.Span{Start: c.Start, End: c.End},
			Grain:       event.Grain(c.Grain),
			HasTimezone: c.HasTimezone,
		})
	}
	return out, nil
}

var _ Recognizer = (*DucklingRecognizer)(nil)
