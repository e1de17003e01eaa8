package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewStorage("saving license", cause)

	assert.Equal(t, "saving license: connection refused", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))

	bare := NewNotFound("license not found")
	assert.Equal(t, "license not found", bare.Error())
	assert.Nil(t, errors.Unwrap(bare))
}

func TestAppError_IsMatchesByType(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewNotFound("license not found"))

	assert.True(t, errors.Is(err, NewNotFound("anything")))
	assert.False(t, errors.Is(err, NewValidation("anything")))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewValidation("bad request").
		WithContext("field", "max_activations").
		WithContext("value", 0)

	assert.Equal(t, "max_activations", err.Context["field"])
	assert.Equal(t, 0, err.Context["value"])
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrTypeNotFound, TypeOf(NewNotFound("x")))
	assert.Equal(t, ErrTypeNotFound, TypeOf(fmt.Errorf("wrapped: %w", NewNotFound("x"))))
	assert.Equal(t, ErrTypeInternal, TypeOf(errors.New("plain")))
}

func TestProblemDetails_MarshalFlattensExtensions(t *testing.T) {
	p := NewProblemDetails(400, "activation", "Activation Denied", "quota exhausted").
		WithExtension("error_code", "MAX_ACTIVATIONS_REACHED").
		WithExtension("activation_count", 2).
		WithInstance("/api/v1/licenses/activate")

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "https://licenseforge.dev/problems/activation", out["type"])
	assert.Equal(t, "Activation Denied", out["title"])
	assert.Equal(t, float64(400), out["status"])
	assert.Equal(t, "MAX_ACTIVATIONS_REACHED", out["error_code"])
	assert.Equal(t, float64(2), out["activation_count"])
	assert.Equal(t, "/api/v1/licenses/activate", out["instance"])
}

func TestErrorToProblem_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", NewNotFound("license not found"), 404},
		{"validation", NewValidation("bad payload"), 400},
		{"conflict", NewConflict("duplicate key"), 409},
		{"activation", NewActivation("quota exhausted"), 400},
		{"storage", NewStorage("db down", errors.New("refused")), 500},
		{"plain error", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/licenses", nil)
			p := ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, "/api/v1/licenses", p.Instance)
		})
	}
}

func TestErrorToProblem_StorageDetailIsOpaque(t *testing.T) {
	p := ErrorToProblem(NewStorage("query failed", errors.New("password=hunter2")), nil)
	assert.NotContains(t, p.Detail, "hunter2")
}

func TestErrorHandler_HandleError(t *testing.T) {
	h := NewErrorHandler(nil)

	r := httptest.NewRequest("POST", "/api/v1/licenses", nil)
	w := httptest.NewRecorder()
	h.HandleError(w, r, NewValidation("app_id is required"))

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "json")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "app_id is required", out["detail"])
}
