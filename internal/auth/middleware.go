package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "authPrincipal"

// Role names seeded at startup.
const (
	RoleAdministrator = "administrator"
	RoleAdmin         = "admin"
	RoleUser          = "user"
)

// Principal is the authenticated caller.
type Principal struct {
	ID      string
	Role    string
	RoleID  string
	System  string
	Project string
}

// RoleLookup resolves a role id to its name. An unknown id returns "" and no error.
type RoleLookup interface {
	RoleName(ctx context.Context, roleID string) (string, error)
}

// PrincipalFrom retrieves the authenticated caller from context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// GetUserID retrieves the authenticated subject from context.
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.ID == "" {
		return "", false
	}
	return p.ID, true
}

// Middleware guards routes with tokens of one system.
type Middleware struct {
	issuer *Issuer
	roles  RoleLookup
	logger *zap.Logger
}

func NewMiddleware(issuer *Issuer, roles RoleLookup, logger *zap.Logger) *Middleware {
	return &Middleware{issuer: issuer, roles: roles, logger: logger.Named("auth")}
}

// RequireToken accepts a valid token of system whose role is one of allowedRoles.
// An empty allowedRoles accepts any known role.
func (m *Middleware) RequireToken(system string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Request.Header.Get("Authorization")
		if header == "" {
			reject(c, http.StatusUnauthorized, "Authorization header missing", "")
			return
		}
		tokenString, err := extractBearerToken(header)
		if err != nil {
			reject(c, http.StatusUnauthorized, "Bearer token missing", "")
			return
		}

		claims, err := m.issuer.Parse(tokenString, system)
		if err != nil {
			if errors.Is(err, ErrUnknownSystem) {
				m.logger.Error("missing secret for token system", zap.String("system", system))
				reject(c, http.StatusInternalServerError, "Server configuration error", "")
				return
			}
			reject(c, http.StatusForbidden, "Invalid or expired token", err.Error())
			return
		}

		if claims.System != system || claims.Project != m.issuer.Project() {
			reject(c, http.StatusForbidden, "Token not valid for this system", "")
			return
		}
		if claims.Role == "" {
			reject(c, http.StatusForbidden, "Token missing role information", "")
			return
		}

		roleName, err := m.roles.RoleName(c.Request.Context(), claims.Role)
		if err != nil {
			m.logger.Error("role lookup failed", zap.String("role_id", claims.Role), zap.Error(err))
		}
		if roleName == "" {
			reject(c, http.StatusForbidden, "Invalid role assignment", "")
			return
		}
		if len(allowedRoles) > 0 && !contains(allowedRoles, roleName) {
			reject(c, http.StatusForbidden, "Insufficient permissions", "")
			return
		}

		principal := &Principal{
			ID:      claims.ID,
			Role:    roleName,
			RoleID:  claims.Role,
			System:  claims.System,
			Project: claims.Project,
		}
		ctx := context.WithValue(c.Request.Context(), principalKey, principal)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(principalKey), principal)

		c.Next()
	}
}

// Optional runs guard only when enabled.
func Optional(enabled bool, guard gin.HandlerFunc) gin.HandlerFunc {
	if enabled {
		return guard
	}
	return func(c *gin.Context) { c.Next() }
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func reject(c *gin.Context, status int, message, detail string) {
	body := gin.H{"success": false, "message": message}
	if detail != "" {
		body["error"] = detail
	}
	c.AbortWithStatusJSON(status, body)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
