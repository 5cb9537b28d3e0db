package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name           string
		checks         map[string]Checker
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "all dependencies up",
			checks:         map[string]Checker{"postgres": ok},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"postgres":"up"}}`,
		},
		{
			name:           "no checks",
			checks:         nil,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{}}`,
		},
		{
			name:           "dependency down",
			checks:         map[string]Checker{"postgres": ok, "rabbitmq": down},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"Error","error":"dependency unavailable","data":{"postgres":"up","rabbitmq":"down"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			New(sl.Discard(), tt.checks).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}
