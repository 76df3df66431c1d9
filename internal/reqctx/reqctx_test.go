package reqctx

import (
	"context"
	"errors"
	"testing"
)

func TestScopes(t *testing.T) {
	ctx := WithJob(context.Background(), "job-1")
	if got := From(ctx).JobID; got != "job-1" {
		t.Fatalf("expected job-1, got %q", got)
	}

	target := WithTarget(ctx, "https://a.example/", 2)
	s := From(target)
	if s.JobID != "job-1" || s.URL != "https://a.example/" || s.Attempt != 2 {
		t.Fatalf("unexpected target scope %+v", s)
	}
	if From(ctx).URL != "" {
		t.Error("narrowing must not change the parent scope")
	}
	if From(context.Background()).JobID != "" {
		t.Error("background context has no job")
	}
	if Logger(target) == nil {
		t.Error("logger should never be nil")
	}
}

func TestWrap(t *testing.T) {
	ctx := WithJob(context.Background(), "job-2")
	base := errors.New("boom")
	err := Wrap(ctx, base)
	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to the original")
	}
	if err.Error() != "[job job-2] boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if Wrap(ctx, nil) != nil {
		t.Error("nil stays nil")
	}
}
