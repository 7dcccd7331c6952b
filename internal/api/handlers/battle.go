package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kmills/fitbattle-backend/internal/api/middleware"
	"github.com/kmills/fitbattle-backend/internal/domain"
	"github.com/kmills/fitbattle-backend/internal/repository"
	"github.com/kmills/fitbattle-backend/internal/service"
)

type BattleHandler struct {
	battleService *service.BattleService
}

func NewBattleHandler(battleService *service.BattleService) *BattleHandler {
	return &BattleHandler{battleService: battleService}
}

type CreateBattleRequest struct {
	Title                string               `json:"title"`
	Description          string               `json:"description"`
	BattleType           string               `json:"battleType"`
	DurationDays         int                  `json:"durationDays"`
	Metric               string               `json:"metric"`
	CustomMetric         *domain.CustomMetric `json:"customMetric"`
	Stakes               json.RawMessage      `json:"stakes"`
	Rules                []string             `json:"rules"`
	VerificationRequired bool                 `json:"verificationRequired"`
	AllowSpectators      *bool                `json:"allowSpectators"`
}

type BattleListResponse struct {
	Battles []*domain.Battle `json:"battles"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type BaselineRequest struct {
	Value float64 `json:"value"`
}

type ProgressRequest struct {
	Value float64 `json:"value"`
	Note  string  `json:"note"`
}

type BattleUpdateRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type SpectateRequest struct {
	SupportFor *string `json:"supportFor"`
}

// writeBattleError maps the domain error taxonomy to status codes. Reason
// strings are the sentinel messages, which are stable.
func writeBattleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBattleNotFound), errors.Is(err, domain.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyHasOpponent),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNotParticipant), errors.Is(err, domain.ErrSpectatorsDisallowed):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *BattleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	allowSpectators := true
	if req.AllowSpectators != nil {
		allowSpectators = *req.AllowSpectators
	}

	metric := domain.BattleMetric(req.Metric)
	if req.Metric == "" {
		metric = domain.MetricCustom
	}

	battle, err := h.battleService.CreateBattle(r.Context(), service.CreateBattleInput{
		CreatorID:            userID,
		Title:                req.Title,
		Description:          req.Description,
		BattleType:           domain.BattleType(req.BattleType),
		DurationDays:         req.DurationDays,
		Metric:               metric,
		CustomMetric:         req.CustomMetric,
		Stakes:               req.Stakes,
		Rules:                req.Rules,
		VerificationRequired: req.VerificationRequired,
		AllowSpectators:      allowSpectators,
	})
	if err != nil {
		writeBattleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(battle)
}

func filterFromQuery(r *http.Request) repository.BattleFilter {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return repository.BattleFilter{
		Status:     domain.BattleStatus(q.Get("status")),
		BattleType: domain.BattleType(q.Get("battleType")),
		SortBy:     q.Get("sortBy"),
		SortDesc:   q.Get("sortDir") == "desc",
		Limit:      limit,
		Offset:     offset,
	}
}

func (h *BattleHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	battles, total, err := h.battleService.GetBattles(r.Context(), filter)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, BattleListResponse{
		Battles: battles,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

func (h *BattleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	var viewerID *uuid.UUID
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		viewerID = &userID
	}

	battle, err := h.battleService.GetBattleByID(r.Context(), id, viewerID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	battle, err := h.battleService.AcceptBattle(r.Context(), id, userID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) SetBaseline(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	var req BaselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	battle, err := h.battleService.SetBaseline(r.Context(), id, userID, req.Value)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	battle, err := h.battleService.UpdateProgress(r.Context(), id, userID, req.Value, req.Note)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	var req BattleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updateType := domain.UpdateType(req.Type)
	if req.Type == "" {
		updateType = domain.UpdateTypeProgress
	}

	battle, err := h.battleService.AddUpdate(r.Context(), id, userID, updateType, req.Message)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) AddSpectator(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	var req SpectateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var supportFor *uuid.UUID
	if req.SupportFor != nil {
		parsed, err := uuid.Parse(*req.SupportFor)
		if err != nil {
			http.Error(w, "Invalid supportFor ID", http.StatusBadRequest)
			return
		}
		supportFor = &parsed
	}

	battle, err := h.battleService.AddSpectator(r.Context(), id, userID, supportFor)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	battle, err := h.battleService.CompleteBattle(r.Context(), id, userID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return
	}

	battle, err := h.battleService.CancelBattle(r.Context(), id, userID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battle)
}

func (h *BattleHandler) GetUserBattles(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	battles, err := h.battleService.GetUserBattles(r.Context(), userID, filterFromQuery(r))
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, battles)
}

func (h *BattleHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.battleService.GetBattleStats(r.Context(), userID)
	if err != nil {
		writeBattleError(w, err)
		return
	}

	writeJSON(w, stats)
}
