package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Message string `json:"message" validate:"required,max=5"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Message: "hi"}))

	err := ValidateRequest(sampleRequest{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "is required", vErr.Fields["message"])

	err = ValidateRequest(sampleRequest{Message: "too long"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "must be at most 5 characters", vErr.Fields["message"])
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "busy")
	})
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return ValidateRequest(sampleRequest{})
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("database exploded")
	})

	tests := []struct {
		path    string
		code    int
		message string
	}{
		{"/conflict", 409, "busy"},
		{"/invalid", 400, "validation failed: message is required"},
		{"/boom", 500, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			var env map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &env))
			assert.Equal(t, false, env["success"])
			assert.Equal(t, float64(tt.code), env["code"])
			assert.Equal(t, tt.message, env["message"])
		})
	}
}
