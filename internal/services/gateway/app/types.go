package app

import (
	"github.com/pumpspares/src_project/internal/model"
	"github.com/pumpspares/src_project/internal/wizard"
)

// ---------- Upstream payloads ----------

// calcResponse is the body of POST /api/calculate-src-curves/.
type calcResponse struct {
	model.SRCResult
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ---------- API payloads ----------

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type previewUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// wsMessage travels both ways on the preview socket.
type wsMessage struct {
	Type    string            `json:"type"` // update | preview | error
	Field   string            `json:"field,omitempty"`
	Value   string            `json:"value,omitempty"`
	Preview *wizard.Preview   `json:"preview,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type healthBody struct {
	Status         string `json:"status"`
	CalculatorURL  bool   `json:"calculator_configured"`
	BreakerState   string `json:"calculator_breaker"`
	ActiveSessions int    `json:"active_wizards"`
}
