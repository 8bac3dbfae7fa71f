package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/example/gigwork/internal/auth"
	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/usecase"
)

type roleBody struct {
	Name string `json:"role_name" form:"role_name"`
}

type adminRegisterBody struct {
	RoleID   string `json:"role_id" form:"role_id"`
	Name     string `json:"admin_name" form:"admin_name"`
	Email    string `json:"admin_email" form:"admin_email"`
	Password string `json:"admin_password" form:"admin_password"`
}

type adminSignInBody struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func registerAdminRoutes(group *gin.RouterGroup, deps Dependencies) {
	logger := deps.Logger.Named("admin_handler")
	staff := deps.Auth.RequireToken(auth.SystemAdmin, auth.RoleAdministrator, auth.RoleAdmin)
	anyRole := deps.Auth.RequireToken(auth.SystemAdmin, auth.RoleAdministrator, auth.RoleAdmin, auth.RoleUser)
	root := deps.Auth.RequireToken(auth.SystemAdmin, auth.RoleAdministrator)
	accounts := deps.Accounts

	group.POST("/sign-in", func(c *gin.Context) {
		var body adminSignInBody
		_ = c.ShouldBind(&body)
		session, err := accounts.SignInAdmin(c.Request.Context(), body.Email, body.Password)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Successfully signed in", "token": session.Token, "data": session.Data})
	})

	group.POST("/register", root, func(c *gin.Context) {
		var body adminRegisterBody
		_ = c.ShouldBind(&body)
		image, err := optionalFile(c, deps.Uploads, "admin_img")
		if err != nil {
			uploadError(c, err)
			return
		}
		admin, err := accounts.RegisterAdmin(c.Request.Context(), usecase.AdminRegistration{
			RoleID:   body.RoleID,
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Image:    image,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Admin registered successfully", "data": admin})
	})

	roles := group.Group("/role")
	roles.POST("", staff, func(c *gin.Context) {
		var body roleBody
		_ = c.ShouldBind(&body)
		role, err := accounts.CreateRole(c.Request.Context(), body.Name)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": role})
	})
	roles.GET("", anyRole, func(c *gin.Context) {
		list, err := accounts.ListRoles(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
	})
	roles.GET("/:id", anyRole, func(c *gin.Context) {
		role, err := accounts.GetRole(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": role})
	})
	roles.PATCH("/:id", staff, func(c *gin.Context) {
		var body roleBody
		_ = c.ShouldBind(&body)
		role, err := accounts.RenameRole(c.Request.Context(), c.Param("id"), body.Name)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": role})
	})
	roles.DELETE("/:id", staff, func(c *gin.Context) {
		if err := accounts.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Role deleted successfully"})
	})

	users := group.Group("/user")
	users.GET("", anyRole, func(c *gin.Context) {
		list, err := accounts.ListAdmins(c.Request.Context(), repository.AdminFilter{
			Status: c.Query("status"),
			RoleID: c.Query("role_id"),
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
	})
	users.GET("/:id", anyRole, func(c *gin.Context) {
		admin, err := accounts.GetAdmin(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": admin})
	})
	users.PATCH("/:id", staff, func(c *gin.Context) {
		var body usecase.AdminUpdate
		if c.ContentType() == binding.MIMEJSON {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
				return
			}
		} else {
			body = adminUpdateForm(c)
			image, err := optionalFile(c, deps.Uploads, "admin_img")
			if err != nil {
				uploadError(c, err)
				return
			}
			body.Image = image
		}
		admin, err := accounts.UpdateAdmin(c.Request.Context(), c.Param("id"), body)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": admin})
	})
	users.DELETE("/:id", staff, func(c *gin.Context) {
		if err := accounts.DeleteAdmin(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Admin deleted successfully"})
	})

	verifications := group.Group("/verifications", staff)
	verifications.GET("/metrics", func(c *gin.Context) {
		summary, err := deps.Audit.GetMetricsSummary(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
	})
	verifications.GET("/:id", func(c *gin.Context) {
		log, err := deps.Audit.GetResult(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": log})
	})
	verifications.GET("/:id/duplicates", func(c *gin.Context) {
		report, err := deps.Audit.GetDuplicateReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
	})
}

// adminUpdateForm reads the multipart variant of an admin update. Absent fields stay nil.
func adminUpdateForm(c *gin.Context) usecase.AdminUpdate {
	var in usecase.AdminUpdate
	for field, dst := range map[string]**string{
		"admin_name":     &in.Name,
		"admin_email":    &in.Email,
		"admin_password": &in.Password,
		"admin_status":   &in.Status,
		"role_id":        &in.RoleID,
	} {
		if value, ok := c.GetPostForm(field); ok {
			*dst = &value
		}
	}
	return in
}
