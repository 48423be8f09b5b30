package http

import (
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/services"
)

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Profiles.Me(r.Context(), actorFrom(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.deps.Profiles.UpdateProfile(r.Context(), actorFrom(r).UserID, req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Profiles.ChangePassword(r.Context(), actorFrom(r).UserID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Profiles.DeleteMe(r.Context(), actorFrom(r).UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Icon string `json:"icon"`
}

type categoryPatchRequest struct {
	Name *string `json:"name"`
	Kind *string `json:"kind"`
	Icon *string `json:"icon"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var kind core.Kind
	if v := strings.TrimSpace(r.URL.Query().Get("kind")); v != "" {
		k, err := core.ParseKind(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		kind = k
	}
	list, err := s.deps.Categories.List(r.Context(), actorFrom(r).UserID, kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.deps.Categories.Create(r.Context(), actorFrom(r).UserID, core.Category{
		Name: req.Name,
		Kind: kind,
		Icon: req.Icon,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch := services.CategoryPatch{Name: req.Name, Icon: req.Icon}
	if req.Kind != nil {
		k, err := core.ParseKind(*req.Kind)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.Kind = &k
	}
	c, err := s.deps.Categories.Update(r.Context(), actorFrom(r).UserID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Categories.Delete(r.Context(), actorFrom(r).UserID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transactionRequest struct {
	Kind       string  `json:"kind"`
	CategoryID *string `json:"categoryId"`
	Amount     amount  `json:"amount"`
	OccurredAt string  `json:"occurredAt"`
	Note       string  `json:"note"`
}

type transactionPatchRequest struct {
	Kind       *string          `json:"kind"`
	CategoryID optional[string] `json:"categoryId"`
	Amount     *amount          `json:"amount"`
	OccurredAt *string          `json:"occurredAt"`
	Note       *string          `json:"note"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseTransactionFilter(r.URL.Query(), s.loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.deps.Ledger.ListTransactions(r.Context(), actorFrom(r).UserID, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Transactions.Get(r.Context(), actorFrom(r).UserID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	occurredAt := time.Now()
	if strings.TrimSpace(req.OccurredAt) != "" {
		if occurredAt, err = parseTime("occurredAt", req.OccurredAt, s.loc, false); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	t, err := s.deps.Transactions.Create(r.Context(), actorFrom(r).UserID, core.Transaction{
		Kind:       kind,
		CategoryID: req.CategoryID,
		Amount:     int64(req.Amount),
		OccurredAt: occurredAt,
		Note:       req.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	patch := services.TransactionPatch{
		CategoryID:    req.CategoryID.ptr(),
		ClearCategory: req.CategoryID.Null,
		Note:          req.Note,
	}
	if req.Kind != nil {
		k, err := core.ParseKind(*req.Kind)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.Kind = &k
	}
	if req.Amount != nil {
		v := int64(*req.Amount)
		patch.Amount = &v
	}
	if req.OccurredAt != nil {
		t, err := parseTime("occurredAt", *req.OccurredAt, s.loc, false)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.OccurredAt = &t
	}

	t, err := s.deps.Transactions.Update(r.Context(), actorFrom(r).UserID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.Delete(r.Context(), actorFrom(r).UserID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Ledger.Summary(r.Context(), actorFrom(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleBreakdown serves both the dashboard chart and the expense report.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Ledger.Breakdown(r.Context(), actorFrom(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
