package http

import (
	"net/http"

	"github.com/go-api-otp/internal/application/auth"
	"github.com/go-api-otp/internal/application/notification"
	"github.com/go-api-otp/internal/application/otp"
	"github.com/go-api-otp/internal/application/user"
	"github.com/go-api-otp/internal/transport/http/handler"
	appmiddleware "github.com/go-api-otp/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds and returns the application router.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(appmiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var otpOpts []otp.Option
	if deps.OtpTTL > 0 {
		otpOpts = append(otpOpts, otp.WithTTL(deps.OtpTTL))
	}
	otpSvc := otp.NewService(deps.Store, otpOpts...)
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.Store})
	notifSvc := notification.NewService(deps.Mailer, deps.Templates, deps.Sender, deps.Metrics)
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:       deps.Store,
		UserService:    userSvc,
		OtpService:     otpSvc,
		JWTProvider:    deps.JWTProvider,
		Notifier:       notifSvc,
		StrictDelivery: deps.StrictDelivery,
		Metrics:        deps.Metrics,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	privateH := handler.NewPrivateHandler(userSvc)

	r.Get("/ping", healthH.Ping)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authH.Signup)
		r.Post("/signin", authH.Signin)
		r.Post("/useotp", authH.UseOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Auth(deps.JWTProvider))
		r.Get("/private", privateH.Profile)
	})

	return r
}
