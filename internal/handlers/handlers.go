package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/auth"
	"github.com/example/gigwork/internal/facematch"
	"github.com/example/gigwork/internal/identity"
	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/metrics"
	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/upload"
	"github.com/example/gigwork/internal/usecase"
)

// IdentityService runs the MRZ pipeline.
type IdentityService interface {
	Identify(ctx context.Context, req identity.Request) (*identity.Result, error)
}

// FaceComparer runs the face comparison pipeline.
type FaceComparer interface {
	Compare(ctx context.Context, requestID, personalPath, passportPath string) (*facematch.Result, error)
}

// AuditService records and serves verification outcomes.
type AuditService interface {
	RecordIdentification(ctx context.Context, requestID, userID string, result *identity.Result) error
	RecordFaceComparison(ctx context.Context, requestID, userID, passportHash string, result *facematch.Result) error
	RecordFailure(ctx context.Context, requestID, userID, kind string, cause error) error
	GetResult(ctx context.Context, requestID string) (*repository.VerificationLog, error)
	GetDuplicateReport(ctx context.Context, requestID string) (*usecase.DuplicateReport, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// AccountService manages roles, admins and app users.
type AccountService interface {
	CreateRole(ctx context.Context, name string) (*repository.Role, error)
	ListRoles(ctx context.Context) ([]repository.Role, error)
	GetRole(ctx context.Context, id string) (*repository.Role, error)
	RenameRole(ctx context.Context, id, name string) (*repository.Role, error)
	DeleteRole(ctx context.Context, id string) error

	RegisterAdmin(ctx context.Context, in usecase.AdminRegistration) (*repository.Admin, error)
	SignInAdmin(ctx context.Context, email, password string) (*usecase.Session, error)
	ListAdmins(ctx context.Context, filter repository.AdminFilter) ([]repository.Admin, error)
	GetAdmin(ctx context.Context, id string) (*repository.Admin, error)
	UpdateAdmin(ctx context.Context, id string, in usecase.AdminUpdate) (*repository.Admin, error)
	DeleteAdmin(ctx context.Context, id string) error

	RegisterUser(ctx context.Context, in usecase.UserRegistration) (*usecase.Session, error)
	SignInUser(ctx context.Context, phone, password string) (*usecase.Session, error)
	GetUser(ctx context.Context, id string) (*repository.User, error)
	UpdateUserName(ctx context.Context, id, first, last string) (*repository.User, error)
	UpdateUserImage(ctx context.Context, id string, file *upload.File) (*repository.User, error)
	UpdateUserField(ctx context.Context, callerID string, in usecase.UserFieldUpdate) (*repository.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ProfileService creates and reads KYC profiles.
type ProfileService interface {
	Create(ctx context.Context, in usecase.ProfileSubmission) (*repository.Profile, error)
	Get(ctx context.Context, id string) (*repository.Profile, error)
	ListByUser(ctx context.Context, userID string) ([]repository.Profile, error)
}

// LocationService serves the country and address reference data.
type LocationService interface {
	Countries(ctx context.Context) ([]repository.Country, error)
	Provinces(ctx context.Context) ([]repository.Province, error)
	ProvinceWithDistricts(ctx context.Context, id int) (*usecase.ProvinceDistricts, error)
	DistrictWithVillages(ctx context.Context, id int) (*usecase.DistrictVillages, error)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies is everything RegisterRoutes wires. Nil Metrics disables /metrics.
type Dependencies struct {
	Logger  *zap.Logger
	Metrics *metrics.Collector

	Identity  IdentityService
	Faces     FaceComparer
	Audit     AuditService
	Accounts  AccountService
	Profiles  ProfileService
	Locations LocationService
	Auth      *auth.Middleware

	// IdentityUploads stores /ai uploads next to the acquired document images.
	IdentityUploads *upload.Store
	// IdentityDir resolves passport photo names for face comparison.
	IdentityDir string
	// Uploads validates account and profile files kept in memory.
	Uploads *upload.Store

	Production    bool
	AIRequireAuth bool
	HealthChecks  map[string]HealthCheck
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(recovery(deps.Logger, deps.Production))

	router.GET("/health", health(deps.HealthChecks))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	ai := router.Group("/ai", auth.Optional(deps.AIRequireAuth, deps.Auth.RequireToken(auth.SystemApp)))
	ai.POST("/mrz", identify(deps))
	ai.POST("/compare-faces", compareFaces(deps))

	registerAdminRoutes(router.Group("/web"), deps)
	registerAppRoutes(router.Group("/api"), deps)
	registerLocationRoutes(router.Group("/location"), deps)
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(checks) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		services := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				services[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			services[name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "services": services})
	}
}

// respondError writes the {success:false} envelope used by the account routes.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Internal("Internal server error", err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", logging.RequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(appErr.Status, gin.H{"success": false, "message": appErr.Message})
}

func uploadError(c *gin.Context, err error) {
	body := gin.H{"success": false, "error": "File validation error", "message": err.Error()}
	if errors.Is(err, upload.ErrTooLarge) {
		body["error"] = "File too large"
	}
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, body)
}

func recovery(logger *zap.Logger, production bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.String("request_id", logging.RequestID(c)),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		body := gin.H{"success": false, "message": "Internal server error"}
		if !production {
			body["error"] = fmt.Sprint(recovered)
			body["stack"] = string(debug.Stack())
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}

func principalID(c *gin.Context) string {
	id, _ := auth.GetUserID(c.Request.Context())
	return id
}
