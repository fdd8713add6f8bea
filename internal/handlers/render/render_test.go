package render

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Run render function against recorder and check common response properties
func record(t *testing.T, status int, fn func(w http.ResponseWriter)) string {
	t.Helper()

	w := httptest.NewRecorder()
	fn(w)

	require.Equal(t, status, w.Code)
	assert.Equal(t, contentTypeJSON, w.Header().Get("Content-Type"))

	return w.Body.String()
}

func TestRender_JSON(t *testing.T) {
	t.Run("ok status by default", func(t *testing.T) {
		body := record(t, http.StatusOK, func(w http.ResponseWriter) {
			JSON(w, map[string]any{"project_id": 7, "name": "Switch"})
		})

		assert.JSONEq(t, `{"project_id":7,"name":"Switch"}`, body)
	})

	t.Run("custom status", func(t *testing.T) {
		body := record(t, http.StatusCreated, func(w http.ResponseWriter) {
			JSONWithStatus(w, map[string]string{"token": "access"}, http.StatusCreated)
		})

		assert.JSONEq(t, `{"token":"access"}`, body)
	})

	t.Run("unencodable data", func(t *testing.T) {
		w := httptest.NewRecorder()

		JSON(w, map[string]any{"fn": func() {}})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRender_Message(t *testing.T) {
	body := record(t, http.StatusOK, func(w http.ResponseWriter) {
		Message(w, "Project deleted successfully")
	})

	assert.JSONEq(t, `{"message":"Project deleted successfully"}`, body)
}

func TestRender_ServiceError(t *testing.T) {
	body := record(t, http.StatusForbidden, func(w http.ResponseWriter) {
		ServiceError(w, "Not authorized to delete this project", http.StatusForbidden)
	})

	assert.JSONEq(t, `{
			"error": "service_error",
			"message": "Not authorized to delete this project"
		}`,
		body,
	)
}

func TestRender_DecodeError(t *testing.T) {
	decode := func(body string) error {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		_, err := BindAndValidate[struct {
			Name string `json:"name"`
			Data int    `json:"data"`
		}](httptest.NewRecorder(), r)
		require.Error(t, err, "test expects body to be not decodable")
		return err
	}

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "syntax error",
			err:      decode(`not-json`),
			expected: "Failed to parse JSON: invalid character 'o' in literal null (expecting 'u')",
		},
		{
			name:     "wrong field type",
			err:      decode(`{"name": "ok", "data": "text"}`),
			expected: "Invalid data type for field 'data'",
		},
		{
			name:     "empty body",
			err:      decode(``),
			expected: "Request body is empty",
		},
		{
			name:     "body too large",
			err:      fmt.Errorf("read: %w", &http.MaxBytesError{Limit: 1024}),
			expected: "Request body too large (max 1024 bytes)",
		},
		{
			name:     "any other error",
			err:      errors.New("unexpected EOF"),
			expected: "Failed to parse JSON: unexpected EOF",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := record(t, http.StatusBadRequest, func(w http.ResponseWriter) {
				DecodeError(w, tc.err)
			})

			assert.JSONEq(t, fmt.Sprintf(`{"error":"decoding_failed","message":%q}`, tc.expected), body)
		})
	}
}

func TestRender_ValidationErrors(t *testing.T) {
	type resetRequest struct {
		Email       string `json:"email" validate:"required,email"`
		Code        string `json:"otp_code" validate:"otp"`
		NewPassword string `json:"new_password" validate:"password"`
		Nickname    string `json:"nickname" validate:"min=3"`
		Name        string `json:"name" validate:"max=5"`
		Slug        string `json:"slug" validate:"alphanum"`
	}

	err := validate.Struct(resetRequest{
		Email:       "not-an-email",
		Code:        "12ab56",
		NewPassword: "weak",
		Nickname:    "ab",
		Name:        "too long name",
		Slug:        "not valid",
	})
	var errs validator.ValidationErrors
	require.ErrorAs(t, err, &errs, "test expects data not to pass validation")

	body := record(t, http.StatusBadRequest, func(w http.ResponseWriter) {
		ValidationErrors(w, errs)
	})

	assert.JSONEq(t, `{
			"error": "validation_failed",
			"message": "Request validation failed",
			"fields": {
				"email": "Invalid email format",
				"otp_code": "OTP code must be 6 digits",
				"new_password": "Password must be 8-30 characters with uppercase, lowercase, and number",
				"nickname": "Value is too short (minimum 3)",
				"name": "Value is too long (maximum 5)",
				"slug": "Invalid value"
			}
		}`,
		body,
	)
}

func TestRender_BindAndValidate(t *testing.T) {
	type loginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	tests := []struct {
		name           string
		requestBody    string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "valid request",
			requestBody:    `{"email": "bob@example.com", "password": "Secret123"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"email": "bob@example.com"}`,
		},
		{
			name:           "invalid json",
			requestBody:    `{"email":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "decoding_failed",
				"message": "Failed to parse JSON: unexpected EOF"
			}`,
		},
		{
			name:           "validation failed",
			requestBody:    `{"email": "bob@example.com"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"password": "This field is required"
				}
			}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.requestBody))

			body := record(t, tc.expectedStatus, func(w http.ResponseWriter) {
				req, err := BindAndValidate[loginRequest](w, r)
				if err != nil {
					return // error response already written
				}
				JSON(w, map[string]string{"email": req.Email})
			})

			assert.JSONEq(t, tc.expectedBody, body)
		})
	}
}
