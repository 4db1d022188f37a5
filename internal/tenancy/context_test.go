package tenancy

import (
	"context"
	"testing"
)

func TestAccountIDRoundTrip(t *testing.T) {
	ctx := WithAccountID(context.Background(), "acct-123")
	got, ok := AccountIDFromContext(ctx)
	if !ok || got != "acct-123" {
		t.Fatalf("expected acct-123, got %q / %v", got, ok)
	}
}

func TestAccountIDMissing(t *testing.T) {
	if _, ok := AccountIDFromContext(context.Background()); ok {
		t.Fatal("expected no account id in empty context")
	}
}

func TestAccountIDEmptyString(t *testing.T) {
	ctx := WithAccountID(context.Background(), "")
	if _, ok := AccountIDFromContext(ctx); ok {
		t.Fatal("empty account id should not be reported as present")
	}
}
