// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	UserID string `validate:"required,min=1,max=16"`
	Action string `validate:"required,oneof=play skip like"`
	Limit  int    `validate:"min=0,max=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid passes", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{UserID: "u1", Action: "play", Limit: 10})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Action: "play"})
		if err == nil {
			t.Fatal("expected validation error")
		}
		errs := err.Errors()
		if len(errs) != 1 {
			t.Fatalf("got %d field errors, want 1", len(errs))
		}
		if errs[0].Field() != "UserID" || errs[0].Tag() != "required" {
			t.Errorf("field error = %s/%s, want UserID/required", errs[0].Field(), errs[0].Tag())
		}
	})

	t.Run("oneof rejected", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{UserID: "u1", Action: "dance"})
		if err == nil {
			t.Fatal("expected validation error")
		}
		if got := err.Errors()[0].Tag(); got != "oneof" {
			t.Errorf("tag = %q, want oneof", got)
		}
	})

	t.Run("multiple failures collected", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Limit: 1000})
		if err == nil {
			t.Fatal("expected validation error")
		}
		if len(err.Errors()) != 3 {
			t.Errorf("got %d field errors, want 3", len(err.Errors()))
		}
		if !strings.Contains(err.Error(), ";") {
			t.Errorf("combined message %q should join failures", err.Error())
		}
	})
}

func TestToAPIError(t *testing.T) {
	t.Run("single failure carries field detail", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Action: "play"})
		if err == nil {
			t.Fatal("expected validation error")
		}
		apiErr := err.ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("code = %q", apiErr.Code)
		}
		if apiErr.Details["field"] != "UserID" {
			t.Errorf("details field = %v, want UserID", apiErr.Details["field"])
		}
	})

	t.Run("multiple failures list fields", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Limit: 1000})
		if err == nil {
			t.Fatal("expected validation error")
		}
		apiErr := err.ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok {
			t.Fatalf("details fields has type %T", apiErr.Details["fields"])
		}
		if len(fields) != 3 {
			t.Errorf("got %d field entries, want 3", len(fields))
		}
	})
}

func TestValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("validator instance is not reused")
	}
}
