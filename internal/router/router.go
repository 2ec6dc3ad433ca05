// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/handlers"
	"github.com/idsee/registry-backend/internal/middleware"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
	"github.com/idsee/registry-backend/internal/services"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth          *services.AuthService
	Registry      *services.RegistryService
	Confirmations *services.ConfirmationService
	Peers         *services.PeerVerificationService
	Credits       *services.CreditService
	Notifications *services.NotificationService
	Admin         *services.AdminService
}

// Limiters are the per-client rate limiters mounted on the public surfaces.
type Limiters struct {
	Public *middleware.RateLimiter
	Auth   *middleware.RateLimiter
}

func NewLimiters(cfg config.RateLimitConfig) Limiters {
	return Limiters{
		Public: middleware.NewRateLimiter(rate.Limit(cfg.PublicRPS), cfg.PublicBurst),
		Auth:   middleware.NewRateLimiter(rate.Limit(cfg.AuthRPS), cfg.AuthBurst),
	}
}

func Initialize(store repository.Store, cfg *config.Config, svc Services, limiters Limiters, gatherer prometheus.Gatherer) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Auth)
	animalHandler := handlers.NewAnimalHandler(svc.Registry)
	confirmationHandler := handlers.NewConfirmationHandler(svc.Confirmations)
	verificationHandler := handlers.NewVerificationHandler(svc.Peers)
	creditHandler := handlers.NewCreditHandler(svc.Credits)
	userHandler := handlers.NewUserHandler(svc.Notifications)
	adminHandler := handlers.NewAdminHandler(svc.Admin)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.Frontend.BaseURL, !cfg.IsProduction()))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.AuditLogMiddleware(store))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	authRequired := middleware.AuthRequired(store)
	professional := middleware.RoleRequired(models.RoleBreeder, models.RoleVet, models.RoleChipper)

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", limiters.Auth.Middleware(), authHandler.Register)
			auth.POST("/login", limiters.Auth.Middleware(), authHandler.Login)
			auth.GET("/me", authRequired, authHandler.Me)
		}

		// Public chip lookup
		v1.GET("/verify/:chipId", limiters.Public.Middleware(), animalHandler.PublicVerify)

		animals := v1.Group("/animals")
		animals.Use(authRequired, professional)
		{
			animals.POST("", animalHandler.Register)
			animals.GET("", animalHandler.ListOwn)
			animals.GET("/:id", animalHandler.Get)
			animals.POST("/:id/health-records", middleware.RoleRequired(models.RoleVet), animalHandler.AddHealthRecord)
			animals.GET("/:id/health-records", animalHandler.ListHealthRecords)
		}

		confirmations := v1.Group("/confirmations")
		confirmations.Use(authRequired, middleware.RoleRequired(models.RoleBreeder))
		{
			confirmations.GET("/pending", confirmationHandler.ListPending)
			confirmations.GET("/history", confirmationHandler.History)
			confirmations.POST("/:registrationId/confirm", confirmationHandler.Confirm)
			confirmations.POST("/:registrationId/reject", confirmationHandler.Reject)
		}

		// The emailed token is the credential here, so verify takes no session.
		v1.POST("/verification/email/verify", limiters.Auth.Middleware(), authHandler.VerifyEmail)

		verification := v1.Group("/verification")
		verification.Use(authRequired)
		{
			verification.POST("/email/send", limiters.Auth.Middleware(), authHandler.SendEmailVerification)
			verification.POST("/request", professional, verificationHandler.SubmitRequest)
			verification.POST("/request/evidence", professional, verificationHandler.UploadEvidence)
			verification.GET("/requests", professional, verificationHandler.ListRequests)
			verification.POST("/peer/:requestId", professional, verificationHandler.PeerVerify)
			verification.GET("/my-verifications", professional, verificationHandler.MyVerifications)
			verification.POST("/release-bond/:verificationId", professional, verificationHandler.ReleaseBond)
		}

		credits := v1.Group("/credits")
		{
			credits.GET("/bundles", creditHandler.Bundles)

			protected := credits.Group("")
			protected.Use(authRequired)
			{
				protected.GET("", creditHandler.Balance)
				protected.GET("/transactions", creditHandler.Transactions)
				protected.POST("/purchase", creditHandler.Purchase)
			}
		}

		notifications := v1.Group("/notifications")
		notifications.Use(authRequired)
		{
			notifications.GET("", userHandler.Notifications)
			notifications.PUT("/:id/read", userHandler.MarkNotificationRead)
		}

		admin := v1.Group("/admin")
		admin.Use(authRequired, middleware.AdminRequired())
		{
			admin.GET("/stats", adminHandler.GetStats)

			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.GET("/pending", adminHandler.GetPendingUsers)
				adminUsers.PUT("/:id/verification", adminHandler.UpdateUserVerification)
				adminUsers.PUT("/:id/suspension", adminHandler.UpdateUserSuspension)
			}

			admin.POST("/credits/grant", adminHandler.GrantCredits)
			admin.POST("/bonds/:id/forfeit", adminHandler.ForfeitBond)
			admin.GET("/registrations", adminHandler.GetRegistrations)
		}
	}

	// Static file serving (for development)
	if !cfg.IsProduction() && cfg.AWS.S3Bucket == "" {
		r.Static("/uploads", cfg.AWS.LocalUploadDir)
	}

	return r
}
