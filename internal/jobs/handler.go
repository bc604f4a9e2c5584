package jobs

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/middleware"
	"github.com/verimarket/backend/internal/response"
)

type CreateJobRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	BudgetCents    int64      `json:"budget_cents"`
	RequiredSkills []string   `json:"required_skills"`
	Deadline       *time.Time `json:"deadline"`
}

type ApplyRequest struct {
	PriceCents int64  `json:"price_cents"`
	Proposal   string `json:"proposal"`
}

type SelectRequest struct {
	FreelancerID uuid.UUID   `json:"freelancer_id"`
	VerifierIDs  []uuid.UUID `json:"verifier_ids"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// POST /api/v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	job, err := h.svc.CreateJob(r.Context(), p.AccountID, CreateJobInput(req))
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.Created(w, job)
}

// GET /api/v1/jobs?skill=go&limit=20
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListOpen(r.Context(), r.URL.Query().Get("skill"), limit)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, list)
}

// GET /api/v1/jobs/mine
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListByProvider(r.Context(), p.AccountID, limit)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, list)
}

// GET /api/v1/jobs/{jobID}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}
	job, err := h.svc.GetJob(r.Context(), jobID)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, job)
}

// POST /api/v1/jobs/{jobID}/applications
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	job, err := h.svc.Apply(r.Context(), jobID, p.AccountID, ApplyInput(req))
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.Created(w, job)
}

// POST /api/v1/jobs/{jobID}/selection
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	job, err := h.svc.SelectFreelancer(r.Context(), jobID, p.AccountID, req.FreelancerID, req.VerifierIDs)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, job)
}

func pathJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ID", "job id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer", nil)
		return 0, false
	}
	return n, true
}
