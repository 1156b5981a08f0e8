package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	enabled bool
	sent    []string
}

func (f *fakeRelay) Enabled() bool { return f.enabled }

func (f *fakeRelay) Send(text string) bool {
	if !f.enabled {
		return false
	}
	f.sent = append(f.sent, text)
	return true
}

func TestNotifyHandler_Send(t *testing.T) {
	tests := []struct {
		name       string
		relay      *fakeRelay
		body       string
		wantStatus int
		wantSent   []string
	}{
		{"queued", &fakeRelay{enabled: true}, `{"text":"New signup"}`, http.StatusAccepted, []string{"New signup"}},
		{"missing text", &fakeRelay{enabled: true}, `{}`, http.StatusBadRequest, nil},
		{"blank text", &fakeRelay{enabled: true}, `{"text":"   "}`, http.StatusBadRequest, nil},
		{"invalid json", &fakeRelay{enabled: true}, `text`, http.StatusBadRequest, nil},
		{"relay disabled", &fakeRelay{}, `{"text":"hi"}`, http.StatusServiceUnavailable, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewNotifyHandler(tt.relay)
			rec := do(http.HandlerFunc(h.Send), http.MethodPost, "/api/v1/notify/send", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantSent, tt.relay.sent)
		})
	}
}

func TestNotifyHandler_SendTextRequiredMessage(t *testing.T) {
	h := NewNotifyHandler(&fakeRelay{enabled: true})
	rec := do(http.HandlerFunc(h.Send), http.MethodPost, "/api/v1/notify/send", `{"text":""}`)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "text required", resp.Error)
}

func TestNotifyHandler_IP(t *testing.T) {
	h := NewNotifyHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notify/ip", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.IP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp IPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "203.0.113.9", resp.IP)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/notify/ip", nil)
	req.RemoteAddr = ""
	rec = httptest.NewRecorder()
	h.IP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unknown", resp.IP)
}
