package services

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/cache"
	"github.com/raquelitre/Encuesta/internal/models"
)

func TestResponseService_Submit(t *testing.T) {
	tests := []struct {
		name        string
		req         SubmitRequest
		wantOptions []int
	}{
		{
			name:        "all zero bits",
			req:         SubmitRequest{Bits: "00000000000000000000", Percent: 0, UserAgent: "", Action: "share"},
			wantOptions: nil,
		},
		{
			name:        "first and last item",
			req:         SubmitRequest{Bits: "10000000000000000001", Percent: 10, UserAgent: "ua", Action: "share"},
			wantOptions: []int{1, 20},
		},
		{
			name:        "all items",
			req:         SubmitRequest{Bits: strings.Repeat("1", 20), Percent: 100, Action: "download"},
			wantOptions: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
		},
		{
			name:        "empty bits",
			req:         SubmitRequest{Percent: 35, Action: "download"},
			wantOptions: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestStore(t)
			svc := NewResponseService(db, nil, discardLogger())
			ctx := context.Background()

			id, err := svc.Submit(ctx, tt.req)
			require.NoError(t, err)
			assert.NotZero(t, id)

			assert.Equal(t, 1, countRows(t, db, "responses"))

			details, err := db.ListDetails(ctx, id)
			require.NoError(t, err)
			var options []int
			for _, d := range details {
				options = append(options, d.Option)
			}
			assert.Equal(t, tt.wantOptions, options)

			got, err := db.GetResponse(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.req.Bits, got.Bits)
		})
	}
}

func TestResponseService_Submit_InvalidBits(t *testing.T) {
	bad := []string{"01", strings.Repeat("0", 19), strings.Repeat("1", 21), "1000000000000000000x", "10000000000000000002", "１0000000000000000000"}

	for _, bits := range bad {
		t.Run(bits, func(t *testing.T) {
			db := newTestStore(t)
			svc := NewResponseService(db, nil, discardLogger())

			_, err := svc.Submit(context.Background(), SubmitRequest{Bits: bits, Percent: 10})
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeBitsInvalid, apperrors.CodeOf(err))

			var ve *apperrors.ValidationError
			assert.ErrorAs(t, err, &ve)
			assert.Equal(t, 0, countRows(t, db, "responses"))
			assert.Equal(t, 0, countRows(t, db, "response_details"))
		})
	}
}

func TestResponseService_Submit_Normalizes(t *testing.T) {
	db := newTestStore(t)
	svc := NewResponseService(db, nil, discardLogger())
	ctx := context.Background()

	id, err := svc.Submit(ctx, SubmitRequest{
		Percent:   "250",
		UserAgent: strings.Repeat("ñ", 250),
	})
	require.NoError(t, err)

	got, err := db.GetResponse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Percent)
	assert.Equal(t, models.ActionShare, got.Action)
	assert.Equal(t, strings.Repeat("ñ", 200), got.UserAgent)

	id, err = svc.Submit(ctx, SubmitRequest{Percent: "abc", Action: "print"})
	require.NoError(t, err)
	got, err = db.GetResponse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Percent)
	assert.Equal(t, models.Action("print"), got.Action)
}

func TestResponseService_Submit_StoreFailure(t *testing.T) {
	db := newTestStore(t)
	svc := NewResponseService(&failingStore{Store: db, failCreate: true}, nil, discardLogger())

	_, err := svc.Submit(context.Background(), SubmitRequest{Bits: "10000000000000000001", Percent: 10})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDBWriteFailed, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestResponseService_Submit_InvalidatesCache(t *testing.T) {
	db := newTestStore(t)
	summaries := cache.NewMemory(time.Hour)
	ctx := context.Background()

	require.NoError(t, summaries.Set(ctx, 0, &models.StatsSummary{Total: 99}))

	svc := NewResponseService(db, summaries, discardLogger())
	_, err := svc.Submit(ctx, SubmitRequest{Percent: 5})
	require.NoError(t, err)

	_, err = summaries.Get(ctx)
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestResponseService_Submit_KeepsCacheOnFailure(t *testing.T) {
	db := newTestStore(t)
	summaries := cache.NewMemory(time.Hour)
	ctx := context.Background()
	require.NoError(t, summaries.Set(ctx, 0, &models.StatsSummary{Total: 1}))

	svc := NewResponseService(db, summaries, discardLogger())
	_, err := svc.Submit(ctx, SubmitRequest{Bits: "bad"})
	require.Error(t, err)

	cached, err := summaries.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.Total)
}

func TestNormalizePercent(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"nil", nil, 0},
		{"int", 65, 65},
		{"int64", int64(40), 40},
		{"float rounds half up", 64.5, 65},
		{"float rounds down", 64.4, 64},
		{"negative", -5, 0},
		{"small negative rounds to zero", -0.4, 0},
		{"over range", 150, 100},
		{"exact top", 100.0, 100},
		{"numeric string", "45", 45},
		{"padded string", " 20 ", 20},
		{"float string", "12.5", 13},
		{"non-numeric string", "abc", 0},
		{"empty string", "", 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"negative inf", math.Inf(-1), 0},
		{"bool", true, 0},
		{"json number", json.Number("70"), 70},
		{"bad json number", json.Number("x"), 0},
		{"slice", []int{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePercent(tt.in))
		})
	}
}

func TestTruncateUserAgent(t *testing.T) {
	assert.Equal(t, "", TruncateUserAgent(""))
	assert.Equal(t, "Mozilla/5.0", TruncateUserAgent("Mozilla/5.0"))

	exact := strings.Repeat("a", MaxUserAgentLength)
	assert.Equal(t, exact, TruncateUserAgent(exact))
	assert.Equal(t, exact, TruncateUserAgent(exact+"overflow"))
}
