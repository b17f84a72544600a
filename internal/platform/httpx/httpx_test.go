package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDomain = errors.New("shift: shift already closed")

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{Classify(ErrNotFound, errors.New("missing")), http.StatusNotFound},
		{Classify(ErrConflict, errDomain), http.StatusConflict},
		{Classify(ErrValidation, errors.New("bad")), http.StatusBadRequest},
		{Classify(ErrUnavailable, errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, nil, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestClassifyKeepsMessageAndChain(t *testing.T) {
	err := Classify(ErrConflict, fmt.Errorf("close: %w", errDomain))
	assert.Equal(t, "close: shift: shift already closed", err.Error())
	assert.ErrorIs(t, err, errDomain)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, Classify(ErrConflict, nil))

	rec := httptest.NewRecorder()
	RespondError(rec, nil, err)
	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "Conflict", problem.Title)
	assert.Equal(t, http.StatusConflict, problem.Status)
	assert.Equal(t, err.Error(), problem.Detail)
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Kind string `json:"kind"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"MORNING"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &body))
	assert.Equal(t, "MORNING", body.Kind)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"MORNING","extra":1}`))
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &body), ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &body))
}
