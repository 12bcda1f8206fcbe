package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestAPIResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()

	NewAPIResponse().
		Status(201).
		Header("X-Test", "yes").
		JSON(map[string]string{"hello": "world"}).
		Write(rec)

	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("X-Test"); got != "yes" {
		t.Errorf("X-Test header = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *APIResponseBuilder
		wantStatus int
	}{
		{"bad request", BadRequestError("nope"), 400},
		{"unprocessable", UnprocessableEntityError("nope"), 422},
		{"not found", NotFoundError("nope"), 404},
		{"internal", InternalServerError("nope"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.builder.Write(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body.Error != "nope" {
				t.Errorf("error message = %q, want %q", body.Error, "nope")
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowedError("POST").Write(rec)

	if rec.Code != 405 {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "POST" {
		t.Errorf("Allow header = %q, want POST", got)
	}
}
