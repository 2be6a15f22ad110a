package router

import (
	"context"
	"net/http"
	"time"

	authsvc "impact-lending-backend/internal/application/auth"
	"impact-lending-backend/internal/application/emails"
	healthsvc "impact-lending-backend/internal/application/health"
	investsvc "impact-lending-backend/internal/application/investments"
	"impact-lending-backend/internal/application/ledger"
	loansvc "impact-lending-backend/internal/application/loans"
	"impact-lending-backend/internal/application/notifications"
	"impact-lending-backend/internal/application/qr"
	"impact-lending-backend/internal/application/reconciliation"
	"impact-lending-backend/internal/application/reputation"
	statssvc "impact-lending-backend/internal/application/stats"
	usersvc "impact-lending-backend/internal/application/user"
	validationsvc "impact-lending-backend/internal/application/validations"
	tokenauth "impact-lending-backend/internal/auth"
	"impact-lending-backend/internal/config"
	"impact-lending-backend/internal/constants"
	"impact-lending-backend/internal/infrastructure/cache"
	"impact-lending-backend/internal/infrastructure/database"
	adminhandler "impact-lending-backend/internal/interfaces/handlers/admin"
	authhandler "impact-lending-backend/internal/interfaces/handlers/auth"
	healthhandler "impact-lending-backend/internal/interfaces/handlers/health"
	investhandler "impact-lending-backend/internal/interfaces/handlers/investments"
	loanhandler "impact-lending-backend/internal/interfaces/handlers/loans"
	statshandler "impact-lending-backend/internal/interfaces/handlers/stats"
	userhandler "impact-lending-backend/internal/interfaces/handlers/user"
	validationhandler "impact-lending-backend/internal/interfaces/handlers/validations"
	"impact-lending-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP app is built from.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Rdb    *redis.Client // optional
	Ledger ledger.Gateway
	// LedgerPinger reports relay liveness on /health/json; nil reads as not configured.
	LedgerPinger healthsvc.Pinger
	Tokens       *tokenauth.TokenManager
	Mailer       emails.Mailer
	QR           qr.Encoder
}

// Services exposes the services the app was built with, for the CLI and the scheduler.
type Services struct {
	Loans          *loansvc.Service
	Validations    *validationsvc.Service
	Reconciliation *reconciliation.Service
}

// New builds the Fiber app with all global middleware and route registration.
func New(d Deps) (*fiber.App, *Services) {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(d.Rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            d.Rdb,
		DB:             &database.Pinger{DB: d.DB},
		Ledger:         d.LedgerPinger,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/health", hh.Live)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/reset", hh.Reset)
	app.Get("/health/errors", hh.Errors)

	sessions := middleware.NewSessionStore(d.Rdb)
	requireAuth := middleware.RequireAuth(d.Tokens, sessions)
	idempotent := middleware.Idempotency(d.Rdb, cfg.IdempotencyTTL)

	inbox := &notifications.Service{DB: d.DB, Mailer: d.Mailer}
	validations := &validationsvc.Service{
		DB:         d.DB,
		Ledger:     d.Ledger,
		Reputation: &reputation.Service{DB: d.DB},
		Notifier:   inbox,
	}
	if d.Rdb != nil {
		validations.Attempts = cache.NewAttemptStore(d.Rdb, cfg.LedgerTimeout)
	}
	svcs := &Services{
		Loans:       &loansvc.Service{DB: d.DB, Ledger: d.Ledger, QR: d.QR},
		Validations: validations,
		Reconciliation: &reconciliation.Service{
			DB:         d.DB,
			Completer:  validations,
			Ledger:     d.Ledger,
			StaleAfter: cfg.ReconcileStaleAfter,
		},
	}

	api := app.Group("/api")

	// Auth
	ah := &authhandler.Handlers{Service: &authsvc.Service{DB: d.DB, Tokens: d.Tokens, Sessions: sessions, Ledger: d.Ledger}}
	ag := api.Group("/auth")
	ag.Post("/register", ah.Register)
	ag.Post("/login", ah.Login)
	ag.Post("/logout", requireAuth, ah.Logout)

	// Users
	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: d.DB, Inbox: inbox}}
	ug := api.Group("/users")
	ug.Get("/me", requireAuth, uh.Me)
	ug.Put("/me", requireAuth, uh.UpdateMe)
	ug.Get("/me/notifications", requireAuth, uh.Notifications)
	ug.Patch("/me/notifications/:id/read", requireAuth, uh.MarkNotificationRead)
	ug.Get("/:id", uh.GetUser)

	// Loans
	lh := &loanhandler.Handlers{Service: svcs.Loans}
	lg := api.Group("/loans")
	lg.Post("/", requireAuth, middleware.AuthorizePermission(constants.CreateLoan), idempotent, lh.CreateLoan)
	lg.Get("/", lh.ListLoans)
	lg.Get("/user/:userId", lh.GetUserLoans)
	lg.Get("/:id/qr/:milestoneIndex", requireAuth, lh.MilestoneQR)
	lg.Get("/:id", lh.GetLoan)

	// Validations
	vh := &validationhandler.Handlers{Service: validations}
	vg := api.Group("/validations")
	vg.Post("/", requireAuth, middleware.AuthorizePermission(constants.ValidateMilestone), vh.ValidateMilestone)
	vg.Get("/loan/:loanId", vh.LoanValidations)
	vg.Get("/validator/:validatorId", vh.ValidatorValidations)

	// Investments
	ih := &investhandler.Handlers{Service: &investsvc.Service{DB: d.DB, Ledger: d.Ledger}}
	ig := api.Group("/investments", requireAuth)
	ig.Post("/", middleware.AuthorizePermission(constants.AddLiquidity), idempotent, ih.AddLiquidity)
	ig.Get("/me", ih.MyInvestments)

	// Stats
	sh := &statshandler.Handlers{Service: &statssvc.Service{DB: d.DB}}
	sg := api.Group("/stats")
	sg.Get("/overview", sh.Overview)
	sg.Get("/impact", sh.Impact)
	sg.Get("/leaderboard", sh.Leaderboard)

	// Admin
	adh := &adminhandler.Handlers{Reconciler: svcs.Reconciliation}
	api.Post("/admin/reconcile", requireAuth, middleware.AuthorizePermission(constants.RunReconciliation), adh.Reconcile)

	return app, svcs
}

// Runtime holds the connections CreateApp opened so the caller can close them.
type Runtime struct {
	DB       *gorm.DB
	Rdb      *redis.Client
	Services *Services
}

// Close releases the database and Redis connections.
func (r *Runtime) Close() {
	if r.Rdb != nil {
		_ = r.Rdb.Close()
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// CreateApp opens the database, Redis and ledger clients from cfg and builds the app.
func CreateApp(cfg *config.Config) (*fiber.App, *Runtime, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err = cache.Open(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without attempt store, sessions and traffic stats")
			rdb = nil
		}
	}

	gateway := &ledger.HTTPGateway{
		RelayURL:          cfg.LedgerGatewayURL,
		HorizonURL:        cfg.HorizonURL,
		ContractID:        cfg.ContractID,
		NetworkPassphrase: cfg.NetworkPassphrase,
		Timeout:           cfg.LedgerTimeout,
		Client:            &http.Client{Timeout: cfg.LedgerTimeout},
	}
	app, svcs := New(Deps{
		Config:       cfg,
		DB:           db,
		Rdb:          rdb,
		Ledger:       gateway,
		LedgerPinger: gateway,
		Tokens:       tokenauth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn),
		Mailer:       emails.NewSendGridClient(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName),
		QR:           qr.PNGEncoder{},
	})
	return app, &Runtime{DB: db, Rdb: rdb, Services: svcs}, nil
}
