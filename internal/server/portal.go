package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/projectdesk/api-proxy/internal/billing"
	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/identity"
	"github.com/projectdesk/api-proxy/internal/models"
)

// portalProxy opens a billing portal session for the caller's own customer record
func (s *Server) portalProxy(c *gin.Context) {
	if err := requirePost(c); err != nil {
		s.fail(c, err)
		return
	}
	if s.portalErr != nil {
		s.fail(c, s.portalErr)
		return
	}

	headers := identity.CanonicalHeaders(c.Request.Header)
	token, err := identity.BearerToken(headers)
	if err != nil {
		s.fail(c, err)
		return
	}

	body, err := readBody(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	var payload models.PortalRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			s.fail(c, errs.Wrap(errs.Validation, "Invalid JSON body", err))
			return
		}
	}

	url, err := s.portal.Open(c.Request.Context(), billing.Request{
		Token:   token,
		Body:    payload,
		Origin:  headers.Get("Origin"),
		Referer: headers.Get("Referer"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PortalResult{URL: url})
}
