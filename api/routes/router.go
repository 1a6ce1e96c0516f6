package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shiftledger/api/controllers"
	"github.com/angelmondragon/shiftledger/api/middleware"
	"github.com/angelmondragon/shiftledger/internal/ledger"
	"github.com/angelmondragon/shiftledger/internal/notifications"
	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/db"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/metrics"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
	"github.com/angelmondragon/shiftledger/pkg/redis"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	DB            db.Pinger
	Redis         redis.Pinger
	Idempotency   redis.IdempotencyStore
	Engine        controllers.ShiftEngine
	Observer      controllers.ShiftObserver
	Ledger        ledger.Repository
	Notifications notifications.Repository
	DeadLetters   *outbox.DLQRepository
	Replayer      *outbox.Replayer
	Gatherer      prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(deps.DB, deps.Redis, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.StoreContext(logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/shifts", func(r chi.Router) {
			r.Post("/", controllers.OpenShift(deps.Engine, logg))
			r.Get("/active", controllers.ActiveShift(deps.Engine, logg))
			r.Get("/active/stream", controllers.ShiftStream(deps.Observer, cfg.Shifts.StreamHeartbeat, logg))
			r.Route("/{shiftId}", func(r chi.Router) {
				r.Get("/", controllers.GetShift(deps.Engine, logg))
				r.Post("/sales", controllers.RecordSale(deps.Engine, logg))
				r.Get("/movements", controllers.ListCashMovements(deps.Engine, logg))
				r.Post("/movements", controllers.RecordCashMovement(deps.Engine, logg))
				r.Post("/close", controllers.CloseShift(deps.Engine, logg))
			})
		})

		r.With(middleware.RequireRole(logg, enums.BackOfficeRoleNames()...)).
			Get("/ledger/entries", controllers.LedgerEntries(deps.Ledger, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, string(enums.MemberRoleAdmin)))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Post("/shifts/{shiftId}/terminate", controllers.AdminTerminateShift(deps.Engine, logg))
		r.Route("/stores/{storeId}/notification-settings", func(r chi.Router) {
			r.Get("/", controllers.GetNotificationSettings(deps.Notifications, logg))
			r.Put("/", controllers.PutNotificationSettings(deps.Notifications, logg))
		})
		if deps.DeadLetters != nil && deps.Replayer != nil {
			r.Get("/outbox/dlq", controllers.AdminListDeadLetters(deps.DeadLetters, logg))
			r.Post("/outbox/dlq/{eventId}/replay", controllers.AdminReplayDeadLetter(deps.Replayer, logg))
		}
	})

	return r
}
