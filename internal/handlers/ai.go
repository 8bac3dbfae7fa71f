package handlers

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/acquisition"
	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/identity"
	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/repository"
)

// Messages of the face comparison endpoint.
const (
	MsgFaceInputsRequired = "Personal photo file and passport photo path are required"
	MsgPassportNotFound   = "Passport photo not found at the specified path"
)

type mrzBody struct {
	Image         string `json:"image"`
	IncludeOrigin any    `json:"include-origin"`
}

func identify(deps Dependencies) gin.HandlerFunc {
	logger := deps.Logger.Named("mrz_handler")
	return func(c *gin.Context) {
		requestID := logging.RequestID(c)
		input := acquisition.Request{}
		includeOrigin := !deps.Production || truthy(c.Query("include-origin"))

		if c.ContentType() == binding.MIMEJSON {
			var body mrzBody
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": acquisition.MsgInvalidFormat, "error": err.Error()})
				return
			}
			input.Image = strings.TrimSpace(body.Image)
			includeOrigin = includeOrigin || truthyValue(body.IncludeOrigin)
		} else {
			input.Image = strings.TrimSpace(c.PostForm("image"))
			includeOrigin = includeOrigin || truthy(c.PostForm("include-origin"))
			if fh, err := c.FormFile("image"); err == nil {
				stored, err := deps.IdentityUploads.Save(fh, "image")
				if err != nil {
					uploadError(c, err)
					return
				}
				input.Upload = &acquisition.Upload{Path: stored.Path, Filename: stored.Filename}
			}
		}

		result, err := deps.Identity.Identify(c.Request.Context(), identity.Request{
			RequestID:     requestID,
			Input:         input,
			IncludeOrigin: includeOrigin,
		})
		userID := principalID(c)
		if err != nil {
			if auditErr := deps.Audit.RecordFailure(c.Request.Context(), requestID, userID, repository.KindMRZ, err); auditErr != nil {
				warnAudit(logger, "failed to audit identification failure", requestID, auditErr)
			}
			respondPipelineError(c, logger, err, deps.Production)
			return
		}

		if auditErr := deps.Audit.RecordIdentification(c.Request.Context(), requestID, userID, result); auditErr != nil {
			warnAudit(logger, "failed to audit identification", requestID, auditErr)
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"requestId": requestID,
			"data":      result,
		})
	}
}

// respondPipelineError writes the {status:"failed"} envelope of the MRZ endpoint.
// Unclassified errors expose their text only outside production.
func respondPipelineError(c *gin.Context, logger *zap.Logger, err error, production bool) {
	_ = c.Error(err)
	appErr, ok := apperror.As(err)
	if !ok {
		logger.Error("identification failed", zap.String("request_id", logging.RequestID(c)), zap.Error(err))
		body := gin.H{"status": "failed", "message": "Internal server error"}
		if !production {
			body["error"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	body := gin.H{"status": "failed", "message": appErr.Message}
	if cause := appErr.Cause(); cause != "" {
		body["error"] = cause
	}
	c.JSON(appErr.Status, body)
}

func compareFaces(deps Dependencies) gin.HandlerFunc {
	logger := deps.Logger.Named("face_handler")
	return func(c *gin.Context) {
		requestID := logging.RequestID(c)
		passportPhotoPath := strings.TrimSpace(c.PostForm("passportPhotoPath"))

		var personalPath string
		if fh, err := c.FormFile("personalPhoto"); err == nil {
			stored, err := deps.IdentityUploads.Save(fh, "personalPhoto")
			if err != nil {
				uploadError(c, err)
				return
			}
			personalPath = stored.Path
		}

		if personalPath == "" || passportPhotoPath == "" {
			removeQuietly(logger, personalPath)
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   MsgFaceInputsRequired,
				"details": gin.H{
					"personalPhoto":     presence(personalPath != "", "Uploaded"),
					"passportPhotoPath": presence(passportPhotoPath != "", "Provided"),
				},
			})
			return
		}

		passportPath := filepath.Join(deps.IdentityDir, filepath.Base(passportPhotoPath))
		passportData, err := os.ReadFile(passportPath)
		if err != nil {
			removeQuietly(logger, personalPath)
			if errors.Is(err, fs.ErrNotExist) {
				c.JSON(http.StatusBadRequest, gin.H{
					"success":      false,
					"error":        MsgPassportNotFound,
					"path":         passportPhotoPath,
					"resolvedPath": passportPath,
				})
				return
			}
			logger.Error("failed to read passport photo", zap.String("request_id", requestID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error", "details": err.Error()})
			return
		}
		sum := sha1.Sum(passportData)
		passportHash := hex.EncodeToString(sum[:])

		result, err := deps.Faces.Compare(c.Request.Context(), requestID, personalPath, passportPath)
		userID := principalID(c)
		if err != nil {
			_ = c.Error(err)
			if auditErr := deps.Audit.RecordFailure(c.Request.Context(), requestID, userID, repository.KindFace, err); auditErr != nil {
				warnAudit(logger, "failed to audit face comparison failure", requestID, auditErr)
			}
			logger.Error("face comparison failed", zap.String("request_id", requestID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error", "details": err.Error()})
			return
		}

		if auditErr := deps.Audit.RecordFaceComparison(c.Request.Context(), requestID, userID, passportHash, result); auditErr != nil {
			warnAudit(logger, "failed to audit face comparison", requestID, auditErr)
		}
		if !result.Success {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": result.Message})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"similarity":        result.Similarity,
			"distance":          result.Distance,
			"isMatch":           result.IsMatch,
			"matchLevel":        result.MatchLevel,
			"tensorflowBackend": result.Backend,
		})
	}
}

func presence(ok bool, present string) string {
	if ok {
		return present
	}
	return "Missing"
}

func removeQuietly(logger *zap.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to delete upload", zap.String("path", path), zap.Error(err))
	}
}

func truthy(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func truthyValue(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return truthy(v)
	default:
		return false
	}
}

func warnAudit(logger *zap.Logger, msg, requestID string, err error) {
	logger.Warn(msg,
		zap.String("request_id", requestID),
		zap.String("failed_operation", logging.OperationOf(err)),
		zap.Error(err),
	)
}
