package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
		expected  bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true, expected: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, expected: true},
		{code: CodeForbidden, status: http.StatusForbidden, expected: true},
		{code: CodeNotFound, status: http.StatusNotFound, expected: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusConflict, detailsOK: true, expected: true},
		{code: CodeSelfPurchase, status: http.StatusConflict, detailsOK: true, expected: true},
		{code: CodeStallConflict, status: http.StatusConflict, detailsOK: true, expected: true},
		{code: CodeStallUnavailable, status: http.StatusConflict, detailsOK: true, expected: true},
		{code: CodeBelowMinimum, status: http.StatusUnprocessableEntity, detailsOK: true, expected: true},
		{code: CodeProductMismatch, status: http.StatusUnprocessableEntity, detailsOK: true, expected: true},
		{code: CodePathTraversal, status: http.StatusBadRequest},
		{code: CodeTransactionFailed, status: http.StatusInternalServerError, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.Expected != tt.expected {
			t.Fatalf("code %s expected expected=%v got %v", tt.code, tt.expected, meta.Expected)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestCodeHelpersSeeThroughWrapping(t *testing.T) {
	inner := New(CodeStallConflict, "cart holds another stall")
	outer := fmt.Errorf("add item: %w", inner)

	if CodeOf(outer) != CodeStallConflict {
		t.Fatalf("expected stall conflict, got %s", CodeOf(outer))
	}
	if !IsCode(outer, CodeStallConflict) {
		t.Fatal("IsCode should match wrapped code")
	}
	if !IsExpected(outer) {
		t.Fatal("stall conflict should be an expected outcome")
	}
	if IsExpected(stdErrors.New("disk full")) {
		t.Fatal("untyped errors are never expected outcomes")
	}
	if CodeOf(stdErrors.New("x")) != CodeInternal {
		t.Fatal("untyped errors map to internal")
	}
}

func TestIsCodeMatchesAnyLayer(t *testing.T) {
	inner := New(CodeNotFound, "product not found")
	outer := Wrap(CodeDependency, inner, "load cart")

	if CodeOf(outer) != CodeDependency {
		t.Fatalf("CodeOf should report the outermost code, got %s", CodeOf(outer))
	}
	if !IsCode(outer, CodeNotFound) || !IsCode(outer, CodeDependency) {
		t.Fatal("IsCode should match every typed layer")
	}
	if IsCode(outer, CodeConflict) {
		t.Fatal("IsCode matched an absent code")
	}
	if !stdErrors.Is(outer, &Error{code: CodeNotFound}) {
		t.Fatal("errors.Is should match a bare code target")
	}
	if stdErrors.Is(outer, New(CodeNotFound, "different message")) {
		t.Fatal("targets with a message compare by identity")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(CodeBelowMinimum, "order total %d below minimum %d", 500, 1000)
	if err.Message() != "order total 500 below minimum 1000" || err.Code() != CodeBelowMinimum {
		t.Fatalf("unexpected error %v", err)
	}
}
