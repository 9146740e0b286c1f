package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrDuplicate, http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestValidationProblemListsFields(t *testing.T) {
	type form struct {
		Name string `validate:"required"`
	}
	err := validator.New().Struct(form{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	ValidationProblem(rec, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"form.Name: required"}, body.Errors)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	var target struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(req, &target)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestURLParamIDAndQueryDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x/15?from=2024-03-01&to=bad", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "15")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	id, err := URLParamID(req, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(15), id)

	from, err := QueryDate(req, "from")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", from.Format(DateLayout))

	_, err = QueryDate(req, "to")
	assert.ErrorIs(t, err, ErrValidation)

	missing, err := QueryDate(req, "end")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
