package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/contatus/contatus/internal/middleware"
	"github.com/contatus/contatus/internal/pkg/errcode"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
	"github.com/contatus/contatus/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func getOrgID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextOrgIDKey)
	orgID, _ := value.(string)
	return orgID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.String("organization_id", getOrgID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrJobNotFound):
		response.Error(c, errcode.ErrJobNotFound, "import job not found")
	case errors.Is(err, appErr.ErrNotFound), errors.Is(err, appErr.ErrOrgNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		response.Error(c, errcode.ErrUnsupportedFormat, "unsupported file format")
	case errors.Is(err, appErr.ErrFileTooLarge):
		response.Error(c, errcode.ErrInvalidFile, "file too large")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
