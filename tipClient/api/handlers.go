package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/megavibe/megavibe-node/tipClient/db"
	"github.com/megavibe/megavibe-node/tipClient/errors"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 16

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleMetrics handles GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.services.Metrics == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "metrics are disabled"})
		return
	}
	s.services.Metrics.ServeHTTP(w, r)
}

// handleChains handles GET /api/v1/chains
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, QueryResponse{Data: s.services.Chains.All()})
}

// handleQuote handles POST /api/v1/quotes
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var body QuoteRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: string(errors.ErrCodeValidation)})
		return
	}

	quote, err := s.services.Tips.Quote(r.Context(), body.SourceChainID, body.AmountUSD)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: quote})
}

// handleSubmitTip handles POST /api/v1/tips. The tip runs in the background;
// its progress is available from GET /api/v1/tips/{id}.
func (s *Server) handleSubmitTip(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TipRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: string(errors.ErrCodeValidation)})
		return
	}

	id, err := s.services.Tips.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info().Str("request_id", id).Int64("source_chain", req.SourceChainID).Msg("tip submitted")
	writeJSON(w, http.StatusAccepted, SubmitResponse{RequestID: id})
}

// handleListTips handles GET /api/v1/tips?status=<status>&event_id=<id>&limit=<n>
func (s *Server) handleListTips(w http.ResponseWriter, r *http.Request) {
	if s.services.Journal == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "tip history is disabled"})
		return
	}

	query := r.URL.Query()
	filter := db.TipFilter{
		Status:  query.Get("status"),
		EventID: query.Get("event_id"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := cast.ToIntE(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer", Code: string(errors.ErrCodeValidation)})
			return
		}
		filter.Limit = limit
	}

	tips, err := s.services.Journal.ListTips(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]TipView, 0, len(tips))
	for i := range tips {
		views = append(views, newTipView(&tips[i], nil))
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: views})
}

// handleGetTip handles GET /api/v1/tips/{id}
func (s *Server) handleGetTip(w http.ResponseWriter, r *http.Request) {
	if s.services.Journal == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "tip history is disabled"})
		return
	}

	id := mux.Vars(r)["id"]
	tip, history, err := s.services.Journal.GetTip(id)
	if errors.Is(err, db.ErrTipNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "tip " + id + " not found"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: newTipView(tip, history)})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("code", string(code)).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: string(code)})
}

func statusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidAmount, errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNoRouteFound:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeWalletNotConnected:
		return http.StatusServiceUnavailable
	case errors.ErrCodeNetwork, errors.ErrCodeRPC:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
