package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/similarity/internal/embeddings"
	"github.com/formbricks/similarity/internal/service"
	"github.com/formbricks/similarity/internal/simerrors"
)

type mockSimilarityService struct {
	compareFunc func(ctx context.Context, text1, text2 string) (float64, error)
	calls       int
}

func (m *mockSimilarityService) Compare(ctx context.Context, text1, text2 string) (float64, error) {
	m.calls++

	if m.compareFunc != nil {
		return m.compareFunc(ctx, text1, text2)
	}

	return 0, nil
}

func postSimilarity(t *testing.T, h *SimilarityHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "http://test/semantic-similarity", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.Compare(rec, req)

	return rec
}

func TestSimilarityHandler_Compare_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty object", body: `{}`, want: `{"error":"Missing input"}`},
		{name: "text2 missing", body: `{"text1":"hello"}`, want: `{"error":"Missing input"}`},
		{name: "text1 empty", body: `{"text1":"","text2":"world"}`, want: `{"error":"Missing input"}`},
		{name: "null text", body: `{"text1":null,"text2":"world"}`, want: `{"error":"Missing input"}`},
		{name: "null body", body: `null`, want: `{"error":"Missing input"}`},
		{name: "empty body", body: ``, want: `{"error":"Missing input"}`},
		{name: "malformed json", body: `{"text1":`, want: `{"error":"Invalid request body"}`},
		{name: "wrong type", body: `{"text1":1,"text2":"b"}`, want: `{"error":"Invalid request body"}`},
		{name: "falsy number", body: `{"text1":0,"text2":"b"}`, want: `{"error":"Invalid request body"}`},
		{name: "falsy bool", body: `{"text1":"a","text2":false}`, want: `{"error":"Invalid request body"}`},
		{name: "falsy array", body: `{"text1":[],"text2":"b"}`, want: `{"error":"Invalid request body"}`},
		{name: "array body", body: `["a","b"]`, want: `{"error":"Invalid request body"}`},
		{name: "trailing data", body: `{"text1":"a","text2":"b"} {}`, want: `{"error":"Invalid request body"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSimilarityService{}
			rec := postSimilarity(t, NewSimilarityHandler(svc), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Zero(t, svc.calls, "service must not be called")
		})
	}
}

func TestSimilarityHandler_Compare_Success(t *testing.T) {
	svc := &mockSimilarityService{
		compareFunc: func(_ context.Context, text1, text2 string) (float64, error) {
			assert.Equal(t, "cat", text1)
			assert.Equal(t, "dog", text2)

			return 53.27, nil
		},
	}

	rec := postSimilarity(t, NewSimilarityHandler(svc), `{"text1":"cat","text2":"dog","extra":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"similarity":53.27}`, rec.Body.String())
}

func TestSimilarityHandler_Compare_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        simerrors.NewValidationError("text1", "Missing input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Missing input"}`,
		},
		{
			name:       "invalid embedding",
			err:        simerrors.NewInvalidEmbeddingError("mock", errors.New("zero magnitude")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Invalid embedding"}`,
		},
		{
			name:       "provider failure",
			err:        simerrors.NewProviderError("openai", errors.New("503")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSimilarityService{
				compareFunc: func(context.Context, string, string) (float64, error) { return 0, tt.err },
			}

			rec := postSimilarity(t, NewSimilarityHandler(svc), `{"text1":"a","text2":"b"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestSimilarityHandler_WithMockProvider(t *testing.T) {
	svc := service.NewSimilarityService(service.SimilarityServiceParams{
		EmbeddingClient: embeddings.NewMockClient(),
		Provider:        "mock",
	})
	h := NewSimilarityHandler(svc)

	similarity := func(t *testing.T, body string) float64 {
		t.Helper()

		rec := postSimilarity(t, h, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp SimilarityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		return resp.Similarity
	}

	t.Run("identical texts score 100", func(t *testing.T) {
		assert.InDelta(t, 100.0, similarity(t, `{"text1":"the cat sat","text2":"the cat sat"}`), 0.001)
	})

	t.Run("symmetric", func(t *testing.T) {
		ab := similarity(t, `{"text1":"the cat sat on the mat","text2":"a dog ran in the park"}`)
		ba := similarity(t, `{"text1":"a dog ran in the park","text2":"the cat sat on the mat"}`)

		assert.InDelta(t, ab, ba, 0)
		assert.GreaterOrEqual(t, ab, -100.0)
		assert.LessOrEqual(t, ab, 100.0)
	})

	t.Run("overlapping texts score higher than disjoint", func(t *testing.T) {
		overlap := similarity(t, `{"text1":"the cat sat on the mat","text2":"the cat sat on a rug"}`)
		disjoint := similarity(t, `{"text1":"the cat sat on the mat","text2":"quantum chromodynamics lecture"}`)

		assert.Greater(t, overlap, disjoint)
	})

	t.Run("whitespace-only text is passed through", func(t *testing.T) {
		rec := postSimilarity(t, h, `{"text1":"   ","text2":"hello"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
