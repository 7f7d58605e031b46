package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/models"
	"go.uber.org/zap"
)

// fail writes err to the client. Upstream rejections are relayed with their
// own status and body; everything else becomes {"error": msg}.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	if rejected, ok := errs.AsRejected(err); ok {
		c.Data(rejected.Status, "application/json", rejected.Body)
		c.Abort()
		return
	}

	status := errs.StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("kind", errs.KindOf(err).String()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: errs.PublicMessage(err)})
}

func requirePost(c *gin.Context) error {
	if c.Request.Method != http.MethodPost {
		return errs.New(errs.MethodNotAllowed, "Method Not Allowed")
	}
	return nil
}

// readBody reads the whole request body, mapping an oversized body to a validation error
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errs.Wrap(errs.Validation, "Request body too large", err)
		}
		return nil, errs.Wrap(errs.Validation, "Invalid JSON body", err)
	}
	return body, nil
}
