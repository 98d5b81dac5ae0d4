package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/artifacts"
	"github.com/raquelitre/Encuesta/internal/services"
)

// ImageUploadRequest carries a rendered share image
type ImageUploadRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// ImageHandler handles share image uploads and retrieval
type ImageHandler struct {
	imageService *services.ImageService
}

// NewImageHandler creates a new image handler
func NewImageHandler(imageService *services.ImageService) *ImageHandler {
	return &ImageHandler{imageService: imageService}
}

// Upload stores a base64 encoded image and returns its public URL
func (h *ImageHandler) Upload(c *gin.Context) {
	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.CodeMissingImage})
		return
	}

	data, err := decodeImage(req.ImageBase64)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.CodeMissingImage})
		return
	}

	artifact, err := h.imageService.Store(c.Request.Context(), data)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeMissingImage {
			c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.CodeMissingImage})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "SERVER_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": artifact.URL})
}

// Serve returns a stored image with immutable caching headers
func (h *ImageHandler) Serve(c *gin.Context) {
	data, err := h.imageService.Open(c.Request.Context(), c.Param("file"))
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) || errors.Is(err, artifacts.ErrInvalidKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "SERVER_ERROR"})
		return
	}

	c.Header("Cache-Control", artifacts.ImmutableCacheControl)
	c.Data(http.StatusOK, "image/png", data)
}

// decodeImage accepts plain base64 or a data URL such as
// "data:image/png;base64,...". Padding is optional, embedded whitespace is
// ignored and the URL-safe alphabet is read as standard base64.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, errors.New("malformed data url")
		}
		s = s[i+1:]
	}
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, nil
	}
	s = urlSafeAlphabet.Replace(strings.TrimRight(s, "="))
	return base64.RawStdEncoding.DecodeString(s)
}

var urlSafeAlphabet = strings.NewReplacer("-", "+", "_", "/")
