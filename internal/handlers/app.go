package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/auth"
	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/upload"
	"github.com/example/gigwork/internal/usecase"
)

type userSignInBody struct {
	Phone    string `json:"phone" form:"phone"`
	Password string `json:"password" form:"password"`
}

type userFieldBody struct {
	DataType string `json:"data_type" form:"data_type"`
	IDValue  string `json:"id_value" form:"id_value"`
	Value    string `json:"value" form:"value"`
}

type userNameBody struct {
	FirstName string `json:"user_first" form:"user_first"`
	LastName  string `json:"user_last" form:"user_last"`
}

func registerAppRoutes(group *gin.RouterGroup, deps Dependencies) {
	logger := deps.Logger.Named("app_handler")
	appUser := deps.Auth.RequireToken(auth.SystemApp)
	staff := deps.Auth.RequireToken(auth.SystemAdmin, auth.RoleAdministrator, auth.RoleAdmin)
	accounts := deps.Accounts

	group.POST("/user", func(c *gin.Context) {
		image, err := optionalFile(c, deps.Uploads, "user_img")
		if err != nil {
			uploadError(c, err)
			return
		}
		session, err := accounts.RegisterUser(c.Request.Context(), usecase.UserRegistration{
			Phone:     c.PostForm("phone"),
			Password:  c.PostForm("user_password"),
			FirstName: c.PostForm("user_first"),
			LastName:  c.PostForm("user_last"),
			BirthDate: c.PostForm("user_birth_date"),
			Gender:    c.PostForm("user_gender"),
			Country:   c.PostForm("user_country"),
			Image:     image,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Successfully registered", "token": session.Token, "data": session.Data})
	})

	group.POST("/user/sign-in", func(c *gin.Context) {
		var body userSignInBody
		_ = c.ShouldBind(&body)
		session, err := accounts.SignInUser(c.Request.Context(), body.Phone, body.Password)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Successfully signed in", "token": session.Token, "data": session.Data})
	})

	group.GET("/user/me", appUser, func(c *gin.Context) {
		user, err := accounts.GetUser(c.Request.Context(), principalID(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
	})

	group.PATCH("/user", appUser, func(c *gin.Context) {
		var body userFieldBody
		_ = c.ShouldBind(&body)
		in := usecase.UserFieldUpdate{
			DataType: strings.TrimSpace(firstValue(body.DataType, c.Query("data_type"))),
			IDValue:  firstValue(body.IDValue, c.Query("user_id"), c.Query("id_value")),
			Value:    firstValue(body.Value, c.Query("phone"), c.Query("val")),
		}
		user, err := accounts.UpdateUserField(c.Request.Context(), principalID(c), in)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		resp := gin.H{"success": true, "message": in.DataType + " updated successfully"}
		if value := usecase.UserColumn(user, in.DataType); value != "" {
			resp[in.DataType] = value
		}
		c.JSON(http.StatusOK, resp)
	})

	group.PATCH("/user/name", appUser, func(c *gin.Context) {
		var body userNameBody
		_ = c.ShouldBind(&body)
		user, err := accounts.UpdateUserName(c.Request.Context(), principalID(c), body.FirstName, body.LastName)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "User name updated successfully", "data": user})
	})

	group.PATCH("/user/img", appUser, func(c *gin.Context) {
		image, err := optionalFile(c, deps.Uploads, "user_img")
		if err != nil {
			uploadError(c, err)
			return
		}
		user, err := accounts.UpdateUserImage(c.Request.Context(), principalID(c), image)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "User image updated successfully", "filename": user.Image})
	})

	group.DELETE("/user/:id", staff, func(c *gin.Context) {
		id := c.Param("id")
		if err := accounts.DeleteUser(c.Request.Context(), id); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted successfully", "userId": id})
	})

	profiles := group.Group("/profile", appUser)
	profiles.POST("", createProfile(deps, logger))
	profiles.GET("", func(c *gin.Context) {
		list, err := deps.Profiles.ListByUser(c.Request.Context(), principalID(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
	})
	profiles.GET("/:id", func(c *gin.Context) {
		profile, err := deps.Profiles.Get(c.Request.Context(), c.Param("id"))
		if err == nil && profile.UserID != principalID(c) {
			err = apperror.NotFound("Profile not found")
		}
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
	})
}

func createProfile(deps Dependencies, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		files := map[string]*upload.File{}
		for _, field := range []string{usecase.FilePortfolio, usecase.FileBank, usecase.FileCardFront, usecase.FilePassport} {
			file, err := optionalFile(c, deps.Uploads, field)
			if err != nil {
				uploadError(c, err)
				return
			}
			if file != nil {
				files[field] = file
			}
		}

		profile, err := deps.Profiles.Create(c.Request.Context(), usecase.ProfileSubmission{
			UserID:      principalID(c),
			WorkType:    c.PostForm("work_type"),
			Skill:       c.PostForm("skill"),
			Website:     c.PostForm("website"),
			BankName:    c.PostForm("bank_name"),
			BankAccount: c.PostForm("bank_account"),
			Card: repository.PersonalCard{
				Number:         c.PostForm("card_number"),
				FirstName:      c.PostForm("card_first_name"),
				LastName:       c.PostForm("card_last_name"),
				Address:        c.PostForm("card_address"),
				Nationality:    c.PostForm("card_nationality"),
				Religion:       c.PostForm("card_religion"),
				BirthDate:      c.PostForm("card_birth_date"),
				IssueDate:      c.PostForm("card_issue_date"),
				ExpirationDate: c.PostForm("card_expiration_date"),
			},
			Passport: repository.Passport{
				Format:         c.PostForm("passport_format"),
				Number:         c.PostForm("passport_number"),
				FirstName:      c.PostForm("passport_first_name"),
				LastName:       c.PostForm("passport_last_name"),
				Gender:         c.PostForm("passport_gender"),
				CountryCode:    c.PostForm("passport_country_code"),
				BirthDate:      c.PostForm("passport_birth_date"),
				ExpirationDate: c.PostForm("passport_expiration_date"),
				MRZ:            c.PostForm("mrz"),
			},
			Files: files,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Profile created successfully", "data": profile})
	}
}

// optionalFile reads a multipart file. A missing field yields nil.
func optionalFile(c *gin.Context, store *upload.Store, field string) (*upload.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	return store.Read(fh, field)
}

func firstValue(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
