package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rohansroy/giterdone/internal/application/auth"
	"github.com/rohansroy/giterdone/internal/application/passkey"
	"github.com/rohansroy/giterdone/internal/application/password"
	"github.com/rohansroy/giterdone/internal/application/recovery"
	"github.com/rohansroy/giterdone/internal/application/session"
	"github.com/rohansroy/giterdone/internal/application/totp"
	"github.com/rohansroy/giterdone/internal/application/user"
	"github.com/rohansroy/giterdone/internal/config"
	"github.com/rohansroy/giterdone/internal/domain"
	jwtinfra "github.com/rohansroy/giterdone/internal/infrastructure/jwt"
	"github.com/rohansroy/giterdone/internal/transport/http/handler"
	appmiddleware "github.com/rohansroy/giterdone/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo      UserRepository
	SessionRepo   SessionRepository
	ChallengeRepo ChallengeRepository
	// Notifier is nil when no delivery channel is configured.
	Notifier    RecoveryNotifier
	JWTProvider *jwtinfra.Provider
}

// NewRouter builds the services and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, error) {
	engine, err := passkey.NewEngine(passkey.Config{
		RPID:         cfg.WebAuthnRPID,
		RPName:       cfg.WebAuthnRPName,
		Origins:      cfg.WebAuthnOrigins,
		ChallengeTTL: cfg.WebAuthnChallengeTTL,
	})
	if err != nil {
		return nil, err
	}

	passwordSvc := password.NewService(password.ServiceDeps{UserRepo: deps.UserRepo})
	totpSvc := totp.NewService(totp.ServiceDeps{UserRepo: deps.UserRepo, Issuer: cfg.TOTPIssuer})
	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo: deps.SessionRepo,
		UserRepo:    deps.UserRepo,
		JWTProvider: deps.JWTProvider,
		RefreshTTL:  cfg.RefreshTokenTTL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:            deps.UserRepo,
		ChallengeRepo:       deps.ChallengeRepo,
		Passwords:           passwordSvc,
		TOTP:                totpSvc,
		Passkeys:            engine,
		Sessions:            sessionSvc,
		Recovery:            recovery.NewService(recovery.ServiceDeps{Secret: cfg.RecoverySecret, MaxAge: cfg.RecoveryMaxAge}),
		Notifier:            deps.Notifier,
		RecoveryURLBase:     cfg.RecoveryURLBase,
		ExposeRecoveryToken: cfg.RecoveryExposeToken,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	optionalAuthMw := appmiddleware.OptionalAuth(deps.JWTProvider)

	registerRL := appmiddleware.PerHour(10)
	loginRL := appmiddleware.PerMinute(10)
	recoveryRL := appmiddleware.PerHour(5)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	passkeyH := handler.NewPasskeyHandler(authSvc)
	totpH := handler.NewTOTPHandler(totpSvc)
	recoveryH := handler.NewRecoveryHandler(authSvc)
	passwordH := handler.NewPasswordHandler(passwordSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

			// ── Public routes (no auth) ──────────────────────────────────────
			r.With(registerRL.Limit).Post("/register", authH.Register)
			r.With(loginRL.Limit).Post("/login/password", authH.LoginPassword)
			r.With(loginRL.Limit).Post("/login/check-method", authH.CheckMethod)
			r.With(loginRL.Limit).Post("/passkey/login/options", passkeyH.LoginOptions)
			r.With(loginRL.Limit).Post("/passkey/login/verify", passkeyH.LoginVerify)
			r.With(recoveryRL.Limit).Post("/recovery/request", recoveryH.Request)
			r.With(recoveryRL.Limit).Post("/recovery/confirm", recoveryH.Confirm)
			r.Post("/token/refresh", sessionH.Refresh)

			// Enrollment works for new users and for signed-in users adding a key.
			r.Group(func(r chi.Router) {
				r.Use(optionalAuthMw, registerRL.Limit)
				r.Post("/passkey/registration/options", passkeyH.RegistrationOptions)
				r.Post("/passkey/registration/verify", passkeyH.RegistrationVerify)
			})

			// ── Authenticated routes ─────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(authMw)

				r.Post("/totp/enroll", totpH.Enroll)
				r.Post("/totp/verify", totpH.Verify)
				r.Post("/totp/disable", totpH.Disable)
				r.Post("/logout", sessionH.Logout)
				r.Get("/profile", userH.Get)
				r.Put("/profile", userH.Update)
				r.With(appmiddleware.RequireMethod(domain.AuthMethodPassword)).Post("/password/change", passwordH.Change)
			})
		})
	})

	return r, nil
}
