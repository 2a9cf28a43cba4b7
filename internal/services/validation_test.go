package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolveRequest struct {
	Decision    string   `json:"decision" validate:"required,oneof=approved rejected partially_approved"`
	ApprovedIDs []string `json:"approvedEntryIds" validate:"omitempty,dive,required"`
	Note        string   `json:"note" validate:"max=10"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&resolveRequest{Decision: "approved"})
		assert.NoError(t, err)
	})

	t.Run("unknown decision", func(t *testing.T) {
		err := vh.ValidateStruct(&resolveRequest{Decision: "maybe"})
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Len(t, verrs, 1)
		assert.Equal(t, "decision", verrs[0].Field())
		assert.Equal(t, "oneof", verrs[0].Tag())
	})

	t.Run("multiple failures use json names", func(t *testing.T) {
		err := vh.ValidateStruct(&resolveRequest{Note: "far too long a note"})
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		fields := []string{verrs[0].Field(), verrs[1].Field()}
		assert.ElementsMatch(t, []string{"decision", "note"}, fields)
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&resolveRequest{Decision: "maybe", Note: "far too long a note"})
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "decision")
		assert.Contains(t, response.Details, "note")
	})

	t.Run("non validation error is not expanded", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Conflict", http.StatusConflict, errors.New("boom"))

		assert.Equal(t, http.StatusConflict, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Conflict", response.Error)
		assert.Nil(t, response.Details)
	})
}

func TestSendJSONResponse(t *testing.T) {
	w := httptest.NewRecorder()

	SendJSONResponse(w, http.StatusCreated, map[string]string{"id": "ar-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"ar-1"}`, w.Body.String())
}
