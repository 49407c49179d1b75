// Package contract defines the shared request/response envelope, error
// model and grounding schema used by every agent in the verification
// pipeline.
//
// All agents accept one request shape and return one response shape; the
// differences between task types live entirely inside Inputs and Outputs.
// A conformance checker can validate any agent against this package alone,
// without knowing task semantics.
package contract

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskType selects which behavior an agent executes.
type TaskType string

const (
	// TaskIngestDocuments chunks, embeds and stores documents.
	TaskIngestDocuments TaskType = "ingest_documents"
	// TaskRetrieveGrounding runs hybrid retrieval and returns a Grounding Pack.
	TaskRetrieveGrounding TaskType = "retrieve_grounding"
	// TaskVerifyClaims assigns pass/fail/unclear verdicts to claims.
	TaskVerifyClaims TaskType = "verify_claims"
)

// KnownTaskType reports whether t is one of the closed task-type values.
func KnownTaskType(t TaskType) bool {
	switch t {
	case TaskIngestDocuments, TaskRetrieveGrounding, TaskVerifyClaims:
		return true
	}
	return false
}

// Mode is the operating mode threaded through agent decision functions.
//
// DEMO permits deterministic stub behavior; LIVE enforces the fail-closed
// policy: no claim may pass without real, resolvable evidence.
type Mode string

const (
	ModeDemo Mode = "DEMO"
	ModeLive Mode = "LIVE"
)

// Status values for the response envelope. There is never a third value.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DefaultTimeout bounds a full agent invocation when the caller supplies
// no budget.
const DefaultTimeout = 600 * time.Second

// Budgets carries optional resource limits for one invocation.
type Budgets struct {
	MaxTokens int `json:"max_tokens,omitempty"`
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

// Request is the uniform envelope every agent accepts.
type Request struct {
	RequestID  string         `json:"request_id"`
	TaskType   TaskType       `json:"task_type"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	StageID    string         `json:"stage_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Mode       Mode           `json:"mode,omitempty"`
	RiskTier   string         `json:"risk_tier,omitempty"`
	Domain     string         `json:"domain,omitempty"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Budgets    *Budgets       `json:"budgets,omitempty"`
}

// EffectiveMode returns the request mode, defaulting to DEMO.
func (r *Request) EffectiveMode() Mode {
	if r.Mode == ModeLive {
		return ModeLive
	}
	return ModeDemo
}

// EffectiveTimeout returns the caller's time budget, or DefaultTimeout.
func (r *Request) EffectiveTimeout() time.Duration {
	if r.Budgets != nil && r.Budgets.TimeoutMS > 0 {
		return time.Duration(r.Budgets.TimeoutMS) * time.Millisecond
	}
	return DefaultTimeout
}

// Validate checks envelope-level fields. It returns a VALIDATION_ERROR
// before any side effect; task-specific input validation happens inside
// the agents.
func (r *Request) Validate() *Error {
	if r.RequestID == "" {
		return NewError(CodeValidation, "request_id is required", nil)
	}
	if r.TaskType == "" {
		return NewError(CodeValidation, "task_type is required", nil)
	}
	if r.Mode != "" && r.Mode != ModeDemo && r.Mode != ModeLive {
		return NewError(CodeValidation, "mode must be DEMO or LIVE", map[string]any{
			"mode": string(r.Mode),
		})
	}
	if r.Budgets != nil && r.Budgets.TimeoutMS < 0 {
		return NewError(CodeValidation, "budgets.timeout_ms must not be negative", nil)
	}
	return nil
}

// Usage reports resource consumption for one invocation.
type Usage struct {
	PromptTokens     int   `json:"prompt_tokens,omitempty"`
	CompletionTokens int   `json:"completion_tokens,omitempty"`
	TotalTokens      int   `json:"total_tokens,omitempty"`
	DurationMS       int64 `json:"duration_ms,omitempty"`
}

// Response is the uniform envelope every agent returns.
//
// Invariant: Error is non-nil if and only if Status == StatusError.
// Grounding is populated only by retrieve-shaped agents.
type Response struct {
	Status    string         `json:"status"`
	RequestID string         `json:"request_id"`
	Outputs   map[string]any `json:"outputs"`
	Artifacts []string       `json:"artifacts,omitempty"`
	Usage     *Usage         `json:"usage,omitempty"`
	Grounding *GroundingPack `json:"grounding,omitempty"`
	Error     *Error         `json:"error,omitempty"`
}

// OK builds a successful response envelope.
func OK(requestID string, outputs map[string]any) *Response {
	if outputs == nil {
		outputs = map[string]any{}
	}
	return &Response{
		Status:    StatusOK,
		RequestID: requestID,
		Outputs:   outputs,
	}
}

// Fail builds an error response envelope.
func Fail(requestID string, err *Error) *Response {
	return &Response{
		Status:    StatusError,
		RequestID: requestID,
		Outputs:   map[string]any{},
		Error:     err,
	}
}

// DecodeInput unmarshals Inputs[key] into dst via a JSON round trip.
// Returns an error when the key is absent or the value does not fit dst.
func DecodeInput(inputs map[string]any, key string, dst any) error {
	raw, ok := inputs[key]
	if !ok {
		return fmt.Errorf("input %q is missing", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encoding input %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding input %q: %w", key, err)
	}
	return nil
}
