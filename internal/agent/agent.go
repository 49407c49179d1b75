// Package agent dispatches envelope requests to the ingest, retrieval
// and verification services. Each agent process declares which task
// types it serves; everything else is rejected with
// UNSUPPORTED_TASK_TYPE.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
	"github.com/fyrsmithlabs/verifyd/internal/events"
	"github.com/fyrsmithlabs/verifyd/internal/ingest"
	"github.com/fyrsmithlabs/verifyd/internal/retrieval"
	"github.com/fyrsmithlabs/verifyd/internal/verify"
)

// Config holds configuration for the agent.
type Config struct {
	// TaskTypes lists the task types this process serves. Empty serves
	// all three.
	TaskTypes []string
}

// Agent routes requests to the services behind the served task types.
type Agent struct {
	served    map[contract.TaskType]bool
	ingest    *ingest.Service
	retrieval *retrieval.Service
	verify    *verify.Service
	logger    *zap.Logger
}

// New creates an agent. Services for unserved task types may be nil.
func New(config Config, ing *ingest.Service, ret *retrieval.Service, ver *verify.Service, logger *zap.Logger) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	served := make(map[contract.TaskType]bool)
	if len(config.TaskTypes) == 0 {
		served[contract.TaskIngestDocuments] = true
		served[contract.TaskRetrieveGrounding] = true
		served[contract.TaskVerifyClaims] = true
	}
	for _, t := range config.TaskTypes {
		tt := contract.TaskType(t)
		if !contract.KnownTaskType(tt) {
			return nil, fmt.Errorf("unknown task type %q", t)
		}
		served[tt] = true
	}

	if served[contract.TaskIngestDocuments] && ing == nil {
		return nil, fmt.Errorf("ingest service required for %s", contract.TaskIngestDocuments)
	}
	if served[contract.TaskRetrieveGrounding] && ret == nil {
		return nil, fmt.Errorf("retrieval service required for %s", contract.TaskRetrieveGrounding)
	}
	if served[contract.TaskVerifyClaims] && ver == nil {
		return nil, fmt.Errorf("verify service required for %s", contract.TaskVerifyClaims)
	}

	return &Agent{
		served:    served,
		ingest:    ing,
		retrieval: ret,
		verify:    ver,
		logger:    logger,
	}, nil
}

// TaskTypes returns the task types this agent serves.
func (a *Agent) TaskTypes() []string {
	out := make([]string, 0, len(a.served))
	for t := range a.served {
		out = append(out, string(t))
	}
	return out
}

// Run executes one request synchronously. It always returns a
// well-formed envelope; failures surface as structured errors, never as
// a Go error to the transport.
func (a *Agent) Run(ctx context.Context, req *contract.Request) *contract.Response {
	return a.run(ctx, req, events.Discard)
}

// RunStream executes one request, emitting started/progress events to
// the sink and a terminal completed (or error) event that wraps the
// response envelope.
func (a *Agent) RunStream(ctx context.Context, req *contract.Request, sink events.Sink) *contract.Response {
	if sink == nil {
		sink = events.Discard
	}
	sink.Emit(events.Started(req))
	resp := a.run(ctx, req, sink)
	sink.Emit(events.Completed(req, resp))
	return resp
}

func (a *Agent) run(ctx context.Context, req *contract.Request, sink events.Sink) *contract.Response {
	start := time.Now()

	if verr := req.Validate(); verr != nil {
		RequestsTotal.WithLabelValues(string(req.TaskType), "validation_error").Inc()
		return contract.Fail(req.RequestID, verr)
	}
	if !a.served[req.TaskType] {
		RequestsTotal.WithLabelValues(string(req.TaskType), "unsupported").Inc()
		return contract.Fail(req.RequestID, contract.NewError(
			contract.CodeUnsupportedTaskType,
			fmt.Sprintf("task type %q is not served by this agent", req.TaskType),
			map[string]any{"served": a.TaskTypes()},
		))
	}

	ctx, cancel := context.WithTimeout(ctx, req.EffectiveTimeout())
	defer cancel()

	var resp *contract.Response
	switch req.TaskType {
	case contract.TaskIngestDocuments:
		resp = a.runIngest(ctx, req, sink)
	case contract.TaskRetrieveGrounding:
		resp = a.runRetrieve(ctx, req, sink)
	case contract.TaskVerifyClaims:
		resp = a.runVerify(ctx, req, sink)
	}

	elapsed := time.Since(start)
	resp.Usage = &contract.Usage{DurationMS: elapsed.Milliseconds()}
	RunDuration.WithLabelValues(string(req.TaskType)).Observe(elapsed.Seconds())
	RequestsTotal.WithLabelValues(string(req.TaskType), resp.Status).Inc()

	a.logger.Info("run finished",
		zap.String("request_id", req.RequestID),
		zap.String("task_type", string(req.TaskType)),
		zap.String("status", resp.Status),
		zap.Duration("elapsed", elapsed),
	)
	return resp
}

// ingestInputs is the inputs shape for ingest_documents.
type ingestInputs struct {
	Collection string              `json:"collection"`
	Documents  []contract.Document `json:"documents"`
}

func (a *Agent) runIngest(ctx context.Context, req *contract.Request, sink events.Sink) *contract.Response {
	var in ingestInputs
	if req.Inputs != nil {
		if raw, ok := req.Inputs["collection"]; ok {
			if s, ok := raw.(string); ok {
				in.Collection = s
			}
		}
		if _, ok := req.Inputs["documents"]; ok {
			if err := contract.DecodeInput(req.Inputs, "documents", &in.Documents); err != nil {
				return contract.Fail(req.RequestID, contract.NewError(
					contract.CodeValidation, "inputs.documents is malformed", nil))
			}
		}
	}

	sink.Emit(events.Progress(req, "chunking", fmt.Sprintf("ingesting %d documents", len(in.Documents)), 10))

	result, err := a.ingest.Ingest(ctx, ingest.Request{
		Collection: in.Collection,
		Documents:  in.Documents,
	})
	if err != nil {
		return failFrom(ctx, req, err, "ingest failed")
	}

	return contract.OK(req.RequestID, map[string]any{
		"ingested_count": result.IngestedCount,
		"chunk_count":    result.ChunkCount,
		"chunk_ids":      result.ChunkIDs,
		"collection":     result.Collection,
		"doc_ids":        result.DocIDs,
		"errors":         result.Errors,
	})
}

// retrieveInputs is the inputs shape for retrieve_grounding.
type retrieveInputs struct {
	Query      string            `json:"query"`
	Collection string            `json:"collection"`
	TopK       int               `json:"top_k"`
	Filters    map[string]string `json:"filters"`
}

func (a *Agent) runRetrieve(ctx context.Context, req *contract.Request, sink events.Sink) *contract.Response {
	var in retrieveInputs
	if err := decodeInputs(req.Inputs, &in); err != nil {
		return contract.Fail(req.RequestID, contract.NewError(
			contract.CodeValidation, "inputs are malformed", nil))
	}
	if in.Query == "" {
		return contract.Fail(req.RequestID, contract.NewError(
			contract.CodeValidation, "inputs.query must be a non-empty string", nil))
	}
	if in.TopK < 0 {
		return contract.Fail(req.RequestID, contract.NewError(
			contract.CodeValidation, "inputs.top_k must not be negative", nil))
	}

	sink.Emit(events.Progress(req, "retrieval", "running staged search", 30))

	pack, err := a.retrieval.Retrieve(ctx, retrieval.Request{
		Query:      in.Query,
		Collection: in.Collection,
		TopK:       in.TopK,
		Filters:    in.Filters,
	})
	if err != nil {
		return failFrom(ctx, req, err, "retrieval failed")
	}

	resp := contract.OK(req.RequestID, map[string]any{
		"chunk_count": len(pack.Chunks),
	})
	resp.Grounding = &pack
	return resp
}

// verifyInputs is the inputs shape for verify_claims.
type verifyInputs struct {
	Claims        []contract.Claim       `json:"claims"`
	GroundingPack contract.GroundingPack `json:"grounding_pack"`
}

func (a *Agent) runVerify(ctx context.Context, req *contract.Request, sink events.Sink) *contract.Response {
	var in verifyInputs
	if err := decodeInputs(req.Inputs, &in); err != nil {
		return contract.Fail(req.RequestID, contract.NewError(
			contract.CodeValidation, "inputs are malformed", nil))
	}
	for i, claim := range in.Claims {
		if claim.Text == "" {
			return contract.Fail(req.RequestID, contract.NewError(
				contract.CodeValidation,
				fmt.Sprintf("inputs.claims[%d].text must be non-empty", i), nil))
		}
	}

	sink.Emit(events.Progress(req, "verification", fmt.Sprintf("judging %d claims", len(in.Claims)), 50))

	result, err := a.verify.Verify(ctx, verify.Request{
		Mode:   req.EffectiveMode(),
		Claims: in.Claims,
		Pack:   in.GroundingPack,
	})
	if err != nil {
		return failFrom(ctx, req, err, "verification failed")
	}

	return contract.OK(req.RequestID, map[string]any{
		"claim_verdicts": result.ClaimVerdicts,
		"overall_pass":   result.OverallPass,
		"authoritative":  result.Authoritative,
	})
}

// decodeInputs maps the whole inputs object onto a typed struct.
func decodeInputs(inputs map[string]any, dst any) error {
	if inputs == nil {
		return nil
	}
	wrapped := map[string]any{"inputs": inputs}
	return contract.DecodeInput(wrapped, "inputs", dst)
}

// failFrom maps a service error to a TASK_FAILED envelope, preferring a
// timeout message when the context deadline caused the failure. Error
// details stay free of document content.
func failFrom(ctx context.Context, req *contract.Request, err error, message string) *contract.Response {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return contract.Fail(req.RequestID, contract.NewError(
			contract.CodeTaskFailed,
			"time budget exceeded",
			map[string]any{"timeout_ms": req.EffectiveTimeout().Milliseconds()},
		))
	}
	return contract.Fail(req.RequestID, contract.NewError(contract.CodeTaskFailed, message, nil))
}
