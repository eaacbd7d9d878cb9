package server

import (
	"net/http"

	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
)

// HandleCreateOperation handles POST /v1/operations.
func (h *Handlers) HandleCreateOperation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOperationRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	op, err := h.ops.Create(r.Context(), operations.CreateInput{
		Feature:        req.Feature,
		Parameter:      req.Parameter,
		Value:          req.Value,
		Zone:           req.Zone,
		Sites:          req.Sites,
		DesiredDate:    req.DesiredDate,
		Priority:       req.Priority,
		InitialComment: req.InitialComment,
		CreatedByName:  req.CreatedByName,
		CreatedByEmail: req.CreatedByEmail,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/operations/"+op.OpID)
	writeJSON(w, r, http.StatusCreated, op)
}

// HandleListOperations handles GET /v1/operations.
func (h *Handlers) HandleListOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ops, err := h.ops.List(r.Context(), operations.ListInput{
		Feature:   q.Get("feature"),
		Parameter: q.Get("parameter"),
		Priority:  q.Get("priority"),
		Status:    q.Get("status"),
		Query:     q.Get("q"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, r, ops)
}

// HandleGetOperation handles GET /v1/operations/{op_id}.
func (h *Handlers) HandleGetOperation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.ops.Get(r.Context(), r.PathValue("op_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// HandleOperationHistory handles GET /v1/operations/{op_id}/history.
func (h *Handlers) HandleOperationHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.ops.History(r.Context(), r.PathValue("op_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, r, history)
}

// HandleTransition handles POST /v1/operations/{op_id}/transitions.
func (h *Handlers) HandleTransition(w http.ResponseWriter, r *http.Request) {
	var req model.TransitionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	op, err := h.ops.Transition(r.Context(), r.PathValue("op_id"), operations.TransitionInput{
		Department:  req.Department,
		ToStatus:    req.ToStatus,
		Comment:     req.Comment,
		ActorName:   req.ActorName,
		ActorEmail:  req.ActorEmail,
		PlannedDate: req.PlannedDate,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, op)
}

// HandleVerifyOperation handles GET /v1/operations/{op_id}/verify.
func (h *Handlers) HandleVerifyOperation(w http.ResponseWriter, r *http.Request) {
	report, err := h.ops.Verify(r.Context(), r.PathValue("op_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// HandlePlanning handles GET /v1/planning.
func (h *Handlers) HandlePlanning(w http.ResponseWriter, r *http.Request) {
	ops, err := h.ops.Planning(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, r, ops)
}
