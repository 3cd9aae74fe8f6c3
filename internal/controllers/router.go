package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/franciscosanchezn/gin-forms-api/internal/auth"
	"github.com/franciscosanchezn/gin-forms-api/internal/middleware"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
	"github.com/franciscosanchezn/gin-forms-api/internal/observability"
	"github.com/franciscosanchezn/gin-forms-api/internal/services"
)

// RouterDeps is everything the HTTP surface needs. OAuth, Health, Metrics
// and Logger are optional.
type RouterDeps struct {
	Issuer      *auth.TokenIssuer
	Revocations auth.RevocationStore

	Users     services.UserService
	Templates services.TemplateService
	Access    services.AccessService
	Forms     services.FormService
	Directory services.DirectoryService
	Clients   services.ClientService

	OAuth   *auth.OAuthService
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
	Logger  *logrus.Logger

	CORSAllowedOrigin string
	EnableSwagger     bool
}

// NewRouter builds the engine. Every request passes the same ordered
// stages: request id, headers, recovery, logging, metrics, then
// authenticate, authorize and the handler.
func NewRouter(deps RouterDeps) *gin.Engine {
	if err := RegisterValidators(); err != nil {
		log.WithError(err).Error("Failed to register request validators")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	revocations := deps.Revocations
	if revocations == nil {
		revocations = auth.NoopRevocationStore{}
	}

	var clientTokens middleware.ClientTokenLookup
	if deps.OAuth != nil {
		clientTokens = deps.OAuth.Tokens()
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.CORS(deps.CORSAllowedOrigin),
		gin.Recovery(),
		middleware.RequestLogger(logger),
	)
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.Health != nil {
		observability.RegisterHealthRoutes(router, deps.Health)
	}
	if deps.EnableSwagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, "Route not found"))
	})

	authController := NewAuthController(deps.Users, deps.Issuer, revocations)
	templateController := NewTemplateController(deps.Templates, deps.Metrics)
	accessController := NewAccessController(deps.Access)
	formController := NewFormController(deps.Forms, deps.Metrics)
	adminController := NewAdminController(deps.Directory)
	clientController := NewClientController(deps.Clients)

	api := router.Group("/api")
	{
		api.POST("/auth/register", authController.Register)
		api.POST("/auth/login", authController.Login)
		if deps.OAuth != nil {
			api.POST("/oauth/token", deps.OAuth.HandleToken)
		}

		// Everything below requires a bearer token
		protected := api.Group("")
		protected.Use(middleware.Authenticate(deps.Issuer, revocations, deps.Users, clientTokens))
		{
			protected.GET("/auth/me", authController.Me)
			protected.POST("/auth/logout", authController.Logout)
			protected.POST("/auth/refresh", authController.Refresh)

			templates := protected.Group("/templates")
			{
				templates.GET("", templateController.ListTemplates)
				templates.POST("", templateController.CreateTemplate)
				templates.GET("/manage", middleware.RequireRole(models.RoleAdmin), templateController.ListAllTemplates)
				templates.GET("/:id", templateController.GetTemplate)
				templates.PUT("/:id", templateController.UpdateTemplate)
				templates.DELETE("/:id", templateController.DeleteTemplate)

				templates.GET("/:id/questions", templateController.ListQuestions)
				templates.POST("/:id/questions", templateController.AddQuestion)
				templates.PUT("/:id/questions/order", templateController.ReorderQuestions)
				templates.PUT("/:id/questions/reorder", templateController.ReorderQuestions)

				templates.GET("/:id/access", accessController.ListGrants)
				templates.POST("/:id/access", accessController.Grant)
				templates.DELETE("/:id/access/:userId", accessController.Revoke)

				templates.GET("/:id/forms", formController.ListTemplateForms)
				templates.GET("/:id/forms/export", formController.ExportTemplateForms)
			}

			forms := protected.Group("/forms")
			{
				forms.POST("", formController.SubmitForm)
				forms.GET("", formController.ListMyForms)
				forms.GET("/:id", formController.GetForm)
				forms.PUT("/:id/answers", formController.AmendAnswers)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/users", adminController.ListUsers)
				admin.GET("/users/search", adminController.SearchUsers)
				admin.PUT("/users/:id/role", adminController.ChangeRole)
			}

			clients := protected.Group("/clients")
			{
				clients.GET("", clientController.ListClients)
				clients.POST("", clientController.CreateClient)
				clients.DELETE("/:id", clientController.DeleteClient)
			}
		}
	}

	return router
}
