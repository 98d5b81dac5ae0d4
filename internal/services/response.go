package services

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/raquelitre/Encuesta/internal/answerset"
	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/cache"
	"github.com/raquelitre/Encuesta/internal/models"
	"github.com/raquelitre/Encuesta/internal/storage"
)

// MaxUserAgentLength is the number of characters of user agent kept per response
const MaxUserAgentLength = 200

// SubmitRequest represents a survey submission.
// Percent is advisory telemetry and accepts any JSON scalar.
type SubmitRequest struct {
	Bits      string `json:"bits"`
	Percent   any    `json:"percent"`
	UserAgent string `json:"user_agent"`
	Action    string `json:"action"`
}

// ResponseService handles survey submissions
type ResponseService struct {
	store  storage.Store
	cache  cache.SummaryCache
	logger *slog.Logger
}

// NewResponseService creates a new response service. A nil cache disables
// invalidation.
func NewResponseService(store storage.Store, summaries cache.SummaryCache, logger *slog.Logger) *ResponseService {
	if summaries == nil {
		summaries = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseService{store: store, cache: summaries, logger: logger}
}

// Submit validates and persists one response together with its detail rows.
// Nothing is written when bits is malformed.
func (s *ResponseService) Submit(ctx context.Context, req SubmitRequest) (int64, error) {
	var options []int
	if req.Bits != "" {
		answers, err := answerset.Decode(req.Bits)
		if err != nil {
			return 0, err
		}
		options = answers.Selected()
	}

	resp := &models.Response{
		Percent:   NormalizePercent(req.Percent),
		Bits:      req.Bits,
		UserAgent: TruncateUserAgent(req.UserAgent),
		Action:    models.ParseAction(req.Action),
	}

	if err := s.store.CreateResponse(ctx, resp, options); err != nil {
		s.logger.Error("failed to save response", "error", err, "action", resp.Action)
		return 0, apperrors.Storage(apperrors.CodeDBWriteFailed, err)
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate stats cache", "error", err)
	}

	s.logger.Debug("response saved", "id", resp.ID, "percent", resp.Percent, "options", len(options))
	return resp.ID, nil
}

// NormalizePercent coerces a submitted percent to an integer in [0,100].
// Numbers and numeric strings are rounded half up and clamped; anything else,
// including NaN and infinities, resolves to 0.
func NormalizePercent(v any) int {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case interface{ Float64() (float64, error) }: // json.Number
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Floor(f + 0.5)
	if f < 0 {
		return 0
	}
	if f > answerset.MaxPercent {
		return answerset.MaxPercent
	}
	return int(f)
}

// TruncateUserAgent keeps at most MaxUserAgentLength characters of ua
func TruncateUserAgent(ua string) string {
	if utf8.RuneCountInString(ua) <= MaxUserAgentLength {
		return ua
	}
	runes := []rune(ua)
	return string(runes[:MaxUserAgentLength])
}
