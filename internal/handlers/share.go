package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/services"
)

// ShareHandler records share and download events
type ShareHandler struct {
	responseService *services.ResponseService
}

// NewShareHandler creates a new share handler
func NewShareHandler(responseService *services.ResponseService) *ShareHandler {
	return &ShareHandler{responseService: responseService}
}

// Submit handles a survey submission
func (h *ShareHandler) Submit(c *gin.Context) {
	req, err := readShareBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "INVALID_BODY"})
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	id, err := h.responseService.Submit(c.Request.Context(), req)
	if err != nil {
		var ve *apperrors.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": ve.Code})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": apperrors.CodeDBWriteFailed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "id": id})
}

// shareBody mirrors services.SubmitRequest with loosely typed fields so
// clients sending numbers or booleans are still recorded.
type shareBody struct {
	Bits      any `json:"bits"`
	Percent   any `json:"percent"`
	UserAgent any `json:"user_agent"`
	Action    any `json:"action"`
}

// readShareBody decodes the submission. An empty body is an empty
// submission; anything that is not a JSON object is an error.
func readShareBody(c *gin.Context) (services.SubmitRequest, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return services.SubmitRequest{}, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return services.SubmitRequest{}, nil
	}

	var body shareBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return services.SubmitRequest{}, err
	}
	return services.SubmitRequest{
		Bits:      textOf(body.Bits),
		Percent:   body.Percent,
		UserAgent: textOf(body.UserAgent),
		Action:    textOf(body.Action),
	}, nil
}

// textOf renders a JSON value as text. Falsy values (null, false, 0, "")
// read as absent.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 || math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
