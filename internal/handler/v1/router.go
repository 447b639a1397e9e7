package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/metrics"
)

type RouterDeps struct {
	JWTManager *auth.JWTManager
	Metrics    *metrics.Collector

	Auth     *AuthHandler
	Study    *StudyHandler
	Doctor   *DoctorHandler
	Patient  *PatientHandler
	Workflow *WorkflowHandler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(MetricsMiddleware(deps.Metrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", deps.Auth.Login)
		authGroup.POST("/refresh", deps.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(AuthMiddleware(deps.JWTManager))
	{
		protected.POST("/auth/password", deps.Auth.ChangePassword)

		patients := protected.Group("/patients")
		{
			patients.POST("", RequireRole(domain.RoleOperator), deps.Patient.Create)
			patients.GET("/:id", deps.Patient.Get)
		}

		doctors := protected.Group("/doctors")
		{
			doctors.POST("", RequireRole(domain.RoleOperator), deps.Doctor.Create)
			doctors.GET("/:id", deps.Doctor.Get)
		}

		studies := protected.Group("/studies")
		{
			studies.POST("", RequireRole(domain.RoleOperator), deps.Study.Create)
			studies.GET("/:id", deps.Study.Get)
			studies.POST("/:id/assignments", RequireRole(domain.RoleOperator), deps.Study.Assign)
			studies.DELETE("/:id/assignments/:doctorId", RequireRole(domain.RoleOperator), deps.Study.Unassign)
			studies.POST("/:id/status", RequireRole(domain.RoleOperator, domain.RoleRadiologist), deps.Study.AdvanceStatus)
			studies.POST("/:id/finalize", RequireRole(domain.RoleRadiologist), deps.Study.Finalize)
			studies.GET("/:id/tat", deps.Study.GetTAT)
		}

		protected.GET("/workflow/categories/:status", deps.Workflow.Category)
	}

	return r
}
