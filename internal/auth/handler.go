package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/response"
)

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"account"`
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

// POST /api/v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	acc, err := h.svc.Register(r.Context(), RegisterInput(req))
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	h.log.Info("account registered", "account_id", acc.ID, "role", acc.Role)
	response.Created(w, acc)
}

// POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	token, acc, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
		return
	}
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, LoginResponse{Token: token, Account: acc})
}
