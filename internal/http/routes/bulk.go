package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/briangreenhill/trackhub/internal/bulk"
	"github.com/briangreenhill/trackhub/internal/endpoint"
)

// bulkEndpoints maps each operation type to the endpoint that performs it.
var bulkEndpoints = map[bulk.OperationType]string{
	bulk.OpStatus: "issues.update_status",
	bulk.OpAssign: "issues.assign",
	bulk.OpTag:    "issues.tag",
}

type bulkRequest struct {
	Operations []bulkRequestOp `json:"operations"`
}

type bulkRequestOp struct {
	TargetID string         `json:"targetId"`
	Type     string         `json:"operationType"`
	Data     map[string]any `json:"data,omitempty"`
}

// bulkResponse keeps succeeded and failed items in two separate lists; each
// list preserves the input order of its items. Consumers depend on this
// split, so it is part of the contract.
type bulkResponse struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []bulkItemSuccess `json:"results"`
	Errors    []bulkItemError   `json:"errors"`
}

type bulkItemSuccess struct {
	TargetID string          `json:"targetId"`
	Value    json.RawMessage `json:"value,omitempty"`
}

type bulkItemError struct {
	TargetID string `json:"targetId"`
	Error    string `json:"error"`
}

// handleBulk accepts a batch of independent mutations and always answers 200
// with a detailed body when the batch ran; partial failure is a result, not
// an HTTP error.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	ops := make([]bulk.Operation, len(req.Operations))
	for i, op := range req.Operations {
		ops[i] = bulk.Operation{
			TargetID: op.TargetID,
			Type:     bulk.OperationType(op.Type),
			Payload:  op.Data,
		}
	}

	res, err := s.Bulk.Execute(r.Context(), ops)
	if err != nil {
		if errors.Is(err, bulk.ErrEmptyBatch) {
			writeError(w, http.StatusBadRequest, "operations must not be empty")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := bulkResponse{
		Total:     res.Total,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Results:   []bulkItemSuccess{},
		Errors:    []bulkItemError{},
	}
	for _, item := range res.Items {
		if item.Success {
			resp.Results = append(resp.Results, bulkItemSuccess{TargetID: item.TargetID, Value: item.Value})
		} else {
			resp.Errors = append(resp.Errors, bulkItemError{TargetID: item.TargetID, Error: item.Err})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.Log.Error().Err(err).Msg("encode bulk response")
	}
}

// executeItem is the single-item handler the coordinator fans out through.
// It walks the same resolve → upstream → invalidate path as a single
// mutation, so bulk and singular behavior stay identical.
func (s *Server) executeItem(ctx context.Context, op bulk.Operation) (json.RawMessage, error) {
	endpointID, ok := bulkEndpoints[op.Type]
	if !ok {
		return nil, fmt.Errorf("no endpoint for operation type %q", op.Type)
	}
	desc, err := s.Registry.Get(endpointID)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, len(desc.PathParams))
	for _, p := range desc.PathParams {
		if desc.Invalidates != nil && p == desc.Invalidates.IDParam {
			params[p] = op.TargetID
			continue
		}
		if v, ok := op.Payload[p].(string); ok {
			params[p] = v
		}
	}

	rp, err := s.Resolver.Resolve(endpointID, endpoint.SurfaceUpstream, params)
	if err != nil {
		return nil, err
	}

	res, err := s.Upstream.Do(ctx, rp.Method, rp.Path, op.Payload)
	if err != nil {
		return nil, err
	}

	if desc.Invalidates != nil {
		s.Inval.Invalidate(ctx, desc.Invalidates.Kind, op.TargetID)
	}
	return res.Body, nil
}
