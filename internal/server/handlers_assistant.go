package server

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/yami-59/network-ops-demo/internal/model"
)

// HandleAsk handles POST /v1/assistant. The answer is always 200: missing
// data is an answer, not an error.
func (h *Handlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req model.AskRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if utf8.RuneCountInString(req.Question) > model.MaxQuestionLen {
		writeErrorDetails(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "validation failed",
			[]model.FieldError{{Field: "question", Message: fmt.Sprintf("must be at most %d characters", model.MaxQuestionLen)}})
		return
	}
	writeJSON(w, r, http.StatusOK, h.assistant.Ask(r.Context(), req.Question))
}
