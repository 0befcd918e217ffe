package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("wrap: %w", ErrNotFound), want: http.StatusNotFound},
		{err: ErrDuplicate, want: http.StatusConflict},
		{err: ErrValidation, want: http.StatusBadRequest},
		{err: ErrForbidden, want: http.StatusForbidden},
		{err: ErrUnauthorized, want: http.StatusUnauthorized},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.want, rr.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.Equal(t, tc.want, problem.Status)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.3:5432: refused"))
	require.NotContains(t, rr.Body.String(), "10.0.0.3")
}

func TestDecodeJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"iPhone 13"}`))
	require.NoError(t, DecodeJSON(req, &dest))
	require.Equal(t, "iPhone 13", dest.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.ErrorIs(t, DecodeJSON(req, &dest), ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	require.ErrorIs(t, DecodeJSON(req, &dest), ErrValidation)

	oversized := `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(oversized))
	require.ErrorIs(t, DecodeJSON(req, &dest), ErrValidation)
}

func TestJSONAndNoContent(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusCreated, map[string]string{"id": "p1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"id":"p1"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	NoContent(rr)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Body.String())
}
