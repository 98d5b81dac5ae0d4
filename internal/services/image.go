package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/artifacts"
	"github.com/raquelitre/Encuesta/internal/models"
)

// maxIDAttempts bounds how many fresh identifiers are tried when a key is taken
const maxIDAttempts = 3

// ArtifactExt is the file extension of every stored share image
const ArtifactExt = ".png"

// ImageService stores rendered share images
type ImageService struct {
	backend artifacts.Backend
	baseURL string
	logger  *slog.Logger
	newID   func() (uuid.UUID, error)
}

// NewImageService creates a new image service. baseURL is prefixed to every
// returned retrieval path and may be empty for relative URLs.
func NewImageService(backend artifacts.Backend, baseURL string, logger *slog.Logger) *ImageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageService{
		backend: backend,
		baseURL: baseURL,
		logger:  logger,
		newID:   uuid.NewRandom,
	}
}

// Store persists data under a fresh random identifier. Identical content
// uploaded twice yields two independent artifacts.
func (s *ImageService) Store(ctx context.Context, data []byte) (*models.ImageArtifact, error) {
	if len(data) == 0 {
		return nil, apperrors.Validation(apperrors.CodeMissingImage, "image is empty")
	}

	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, apperrors.Storage(apperrors.CodeWriteFailed, fmt.Errorf("failed to generate id: %w", err))
		}

		err = s.backend.Create(ctx, id.String()+ArtifactExt, data)
		if err == nil {
			s.logger.Info("share image stored", "id", id.String(), "bytes", len(data))
			return &models.ImageArtifact{
				ID:        id.String(),
				URL:       s.URL(id.String()),
				SizeBytes: int64(len(data)),
				CreatedAt: time.Now().UTC(),
			}, nil
		}
		if !errors.Is(err, artifacts.ErrExists) {
			s.logger.Error("failed to store share image", "error", err)
			return nil, apperrors.Storage(apperrors.CodeWriteFailed, err)
		}

		s.logger.Warn("artifact id collision, regenerating", "id", id.String())
		lastErr = err
	}

	return nil, apperrors.Storage(apperrors.CodeWriteFailed,
		fmt.Errorf("no free id after %d attempts: %w", maxIDAttempts, lastErr))
}

// Open returns the content of a stored artifact file such as "<id>.png"
func (s *ImageService) Open(ctx context.Context, file string) ([]byte, error) {
	return s.backend.Get(ctx, file)
}

// URL returns the retrieval path of the artifact id
func (s *ImageService) URL(id string) string {
	return s.baseURL + "/share/" + id + ArtifactExt
}
