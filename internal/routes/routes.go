package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"useraccounts/internal/handlers"
	"useraccounts/internal/middleware"
	"useraccounts/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	authService services.AuthService,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	passwordHandler *handlers.PasswordHandler,
) *gin.Engine {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// ---- public
	api.POST("/register/", userHandler.Register)
	api.POST("/auth/", authHandler.ObtainToken)
	api.GET("/activate/", userHandler.Activate)
	api.PUT("/reset-password/", passwordHandler.RequestReset)
	api.PUT("/new-password/", passwordHandler.NewPassword)
	api.PUT("/verified-email/", userHandler.VerifyEmail)

	// ---- protected
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		protected.GET("/profile/", userHandler.Profile)
		protected.PUT("/edit-profile/", userHandler.UpdateProfile)
		protected.GET("/user-list/", userHandler.ListUsers)
		protected.PUT("/change-password/", passwordHandler.ChangePassword)
		protected.PUT("/change-email/", userHandler.ChangeEmail)
	}

	return r
}
