package server

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/majnioui/calc/internal/assistant"
)

const contextKey = "assistant_context"

func (s *Server) assistantConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.widget)
}

// assistantMessage extracts actions from a widget message and remembers the
// last loan amount for the session.
func (s *Server) assistantMessage(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request body")
		return
	}

	actions, err := assistant.Parse(raw)
	if err != nil {
		if errors.Is(err, assistant.ErrInvalidMessage) {
			_ = c.Error(err)
			abortWith(c, http.StatusBadRequest, err.Error())
			return
		}
		s.fail(c, err, "An error occurred while reading the message")
		return
	}

	if len(actions) > 0 {
		last := actions[len(actions)-1]
		s.logger.Info("assistant requested loan amount", map[string]interface{}{
			"requestId": c.GetString("requestId"),
			"amount":    last.Amount,
			"source":    last.Source,
		})
		s.updateContext(c, func(vars *assistant.ContextVars) {
			amount := last.Amount
			vars.LoanAmount = &amount
		})
	}
	if actions == nil {
		actions = []assistant.Action{}
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (s *Server) assistantContext(c *gin.Context) {
	raw, _ := sessions.Default(c).Get(contextKey).(string)
	c.JSON(http.StatusOK, assistant.DecodeContext(raw))
}
