package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestParseDeploymentID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name      string
		pathValue string
		wantOK    bool
		wantError string
	}{
		{
			name:      "valid UUID",
			pathValue: "550e8400-e29b-41d4-a716-446655440000",
			wantOK:    true,
		},
		{
			name:      "invalid UUID",
			pathValue: "not-a-uuid",
			wantOK:    false,
			wantError: "invalid_deployment_id",
		},
		{
			name:      "empty path value",
			pathValue: "",
			wantOK:    false,
			wantError: "invalid_deployment_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/deployments/x", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseDeploymentID(rec, req, logger)

			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if tt.wantOK {
				if id.String() != tt.pathValue {
					t.Errorf("expected id %s, got %s", tt.pathValue, id)
				}
				return
			}
			if id != uuid.Nil {
				t.Errorf("expected uuid.Nil on failure, got %s", id)
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("expected error code %q, got %q", tt.wantError, body["error"])
			}
		})
	}
}

func TestParseRollbackID_InvalidUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/rollbacks/x", nil)
	req.SetPathValue("id", "bogus")
	rec := httptest.NewRecorder()

	id, ok := ParseRollbackID(rec, req, zap.NewNop())

	if ok || id != uuid.Nil {
		t.Fatalf("expected parse failure, got ok=%v id=%s", ok, id)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
