package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raquelitre/Encuesta/internal/answerset"
	"github.com/raquelitre/Encuesta/internal/apperrors"
)

// RestoreAnswers decodes a shared answer token so a client can restore the
// survey state it describes
func RestoreAnswers(c *gin.Context) {
	answers, err := answerset.Decode(c.Param("bits"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.CodeOf(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bits":     answerset.Encode(answers),
		"selected": answers.Selected(),
		"percent":  answerset.PercentOf(answers),
	})
}
