package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/logging"
)

// Location routes answer with {status, message, data} and are public.
func registerLocationRoutes(group *gin.RouterGroup, deps Dependencies) {
	logger := deps.Logger.Named("location_handler")
	locations := deps.Locations

	group.GET("/country-codes", func(c *gin.Context) {
		countries, err := locations.Countries(c.Request.Context())
		if err != nil {
			respondLocationError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": http.StatusOK, "message": "Successfully fetched country codes", "data": countries})
	})

	group.GET("/province", func(c *gin.Context) {
		provinces, err := locations.Provinces(c.Request.Context())
		if err != nil {
			respondLocationError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": http.StatusOK, "message": "Successfully fetched provinces", "data": provinces})
	})

	group.GET("/district/:id", func(c *gin.Context) {
		id, ok := positiveID(c)
		if !ok {
			return
		}
		result, err := locations.ProvinceWithDistricts(c.Request.Context(), id)
		if err != nil {
			respondLocationError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": http.StatusOK, "message": "Successfully fetched province with districts", "data": result})
	})

	group.GET("/village/:id", func(c *gin.Context) {
		id, ok := positiveID(c)
		if !ok {
			return
		}
		result, err := locations.DistrictWithVillages(c.Request.Context(), id)
		if err != nil {
			respondLocationError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": http.StatusOK, "message": "Successfully fetched district with villages", "data": result})
	})
}

func positiveID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "message": "Invalid ID parameter"})
		return 0, false
	}
	return id, true
}

func respondLocationError(c *gin.Context, logger *zap.Logger, err error) {
	_ = c.Error(err)
	appErr, ok := apperror.As(err)
	if !ok || appErr.Status >= http.StatusInternalServerError {
		logger.Error("location lookup failed",
			zap.String("request_id", logging.RequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"status": http.StatusInternalServerError, "message": "Internal server error"})
		return
	}
	c.JSON(appErr.Status, gin.H{"status": appErr.Status, "message": appErr.Message})
}
