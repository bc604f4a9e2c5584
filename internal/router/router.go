// Package router assembles the chi router for the /api/v1 surface.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verimarket/backend/internal/account"
	"github.com/verimarket/backend/internal/auth"
	"github.com/verimarket/backend/internal/jobs"
	mw "github.com/verimarket/backend/internal/middleware"
	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/response"
	"github.com/verimarket/backend/internal/submissions"
	"github.com/verimarket/backend/internal/validation"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Tokens    mw.TokenValidator
	Validator mw.BodyValidator
	RateLimit *mw.RateLimit // nil disables rate limiting
	Logger    *slog.Logger

	Auth        *auth.Handler
	Account     *account.Handler
	Jobs        *jobs.Handler
	Submissions *submissions.Handler
	Health      http.HandlerFunc
}

// New builds the router with the middleware stack and all routes.
func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestLogger(deps.Logger))
	r.Use(mw.Recoverer(deps.Logger))

	body := func(schema string) func(http.Handler) http.Handler {
		return mw.ValidateBody(deps.Validator, schema)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", deps.Health)

		r.With(body(validation.SchemaRegister)).Post("/auth/register", deps.Auth.Register)
		r.With(body(validation.SchemaLogin)).Post("/auth/login", deps.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(deps.Tokens))
			if deps.RateLimit != nil {
				r.Use(deps.RateLimit.Limit)
			}

			r.Get("/account/me", deps.Account.GetMe)
			r.With(body(validation.SchemaDeposit)).Post("/account/deposit", deps.Account.Deposit)
			r.Get("/account/ledger", deps.Account.ListLedger)

			r.Get("/jobs", deps.Jobs.ListOpen)
			r.Get("/jobs/{jobID}", deps.Jobs.GetJob)
			r.Get("/jobs/{jobID}/submissions", deps.Submissions.ListByJob)
			r.Get("/submissions/{submissionID}", deps.Submissions.Get)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(models.RoleProvider))
				r.Get("/jobs/mine", deps.Jobs.ListMine)
				r.With(body(validation.SchemaCreateJob)).Post("/jobs", deps.Jobs.CreateJob)
				r.With(body(validation.SchemaSelect)).Post("/jobs/{jobID}/selection", deps.Jobs.Select)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(models.RoleFreelancer))
				r.With(body(validation.SchemaApply)).Post("/jobs/{jobID}/applications", deps.Jobs.Apply)
				r.With(body(validation.SchemaUpload)).Post("/jobs/{jobID}/uploads", deps.Submissions.PresignUpload)
				r.With(body(validation.SchemaSubmit)).Post("/jobs/{jobID}/submissions", deps.Submissions.Submit)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(models.RoleVerifier))
				r.With(body(validation.SchemaVerify)).Put("/submissions/{submissionID}/verification", deps.Submissions.Verify)
			})
		})
	})

	return r
}

// Pinger is anything whose reachability the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports 200 when every dependency answers a ping, 503 otherwise.
func HealthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		healthy := true
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				checks[name] = "unavailable"
				healthy = false
				continue
			}
			checks[name] = "ok"
		}
		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "a dependency is unavailable", checks)
			return
		}
		response.JSON(w, map[string]any{"status": "ok", "checks": checks})
	}
}
