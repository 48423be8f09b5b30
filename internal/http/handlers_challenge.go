package http

import (
	"net/http"

	"tally/internal/challenge"
	"tally/internal/core"
)

type challengeRequest struct {
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Type               string  `json:"type"`
	DurationDays       int     `json:"durationDays"`
	TargetAmountPerDay *amount `json:"targetAmountPerDay"`
	IsActive           *bool   `json:"isActive"`
	IsPublic           *bool   `json:"isPublic"`
	StartDate          string  `json:"startDate"`
}

type challengePatchRequest struct {
	Title              *string          `json:"title"`
	Description        *string          `json:"description"`
	Type               *string          `json:"type"`
	DurationDays       *int             `json:"durationDays"`
	TargetAmountPerDay optional[amount] `json:"targetAmountPerDay"`
	IsActive           *bool            `json:"isActive"`
	IsPublic           *bool            `json:"isPublic"`
	StartDate          *string          `json:"startDate"`
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Catalog.ListVisible(r.Context(), actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListMyChallenges(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Catalog.ListMine(r.Context(), actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := s.deps.Catalog.Get(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := core.ParseChallengeKind(req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := parseOptionalTime("startDate", req.StartDate, s.loc, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ch := core.Challenge{
		Title:        req.Title,
		Description:  req.Description,
		Kind:         kind,
		DurationDays: req.DurationDays,
		Active:       true,
		Public:       true,
		StartDate:    start,
	}
	if req.TargetAmountPerDay != nil {
		v := int64(*req.TargetAmountPerDay)
		ch.TargetAmountPerDay = &v
	}
	if req.IsActive != nil {
		ch.Active = *req.IsActive
	}
	if req.IsPublic != nil {
		ch.Public = *req.IsPublic
	}

	created, err := s.deps.Catalog.Create(r.Context(), actorFrom(r), ch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	patch := challenge.Patch{
		Title:        req.Title,
		Description:  req.Description,
		DurationDays: req.DurationDays,
		ClearTarget:  req.TargetAmountPerDay.Null,
		Active:       req.IsActive,
		Public:       req.IsPublic,
	}
	if req.Type != nil {
		k, err := core.ParseChallengeKind(*req.Type)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.Kind = &k
	}
	if v := req.TargetAmountPerDay.ptr(); v != nil {
		n := int64(*v)
		patch.TargetAmountPerDay = &n
	}
	if req.StartDate != nil {
		t, err := parseTime("startDate", *req.StartDate, s.loc, false)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.StartDate = &t
	}

	updated, err := s.deps.Catalog.Update(r.Context(), actorFrom(r), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleJoinChallenge(w http.ResponseWriter, r *http.Request) {
	en, err := s.deps.Enrollments.Join(r.Context(), actorFrom(r).UserID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, en)
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Enrollments.ListMine(r.Context(), actorFrom(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	en, err := s.deps.Enrollments.CheckIn(r.Context(), actorFrom(r).UserID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, en)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Enrollments.Leave(r.Context(), actorFrom(r).UserID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
