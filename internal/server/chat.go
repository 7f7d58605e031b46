package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/projectdesk/api-proxy/internal/chat"
	"github.com/projectdesk/api-proxy/internal/models"
)

// chatProxy forwards a chat request and returns only the reply text
func (s *Server) chatProxy(c *gin.Context) {
	if err := requirePost(c); err != nil {
		s.fail(c, err)
		return
	}
	if s.chatErr != nil {
		s.fail(c, s.chatErr)
		return
	}

	body, err := readBody(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	req, err := chat.Decode(body)
	if err != nil {
		s.fail(c, err)
		return
	}

	content, err := s.chat.Complete(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ChatResult{Content: content})
}
