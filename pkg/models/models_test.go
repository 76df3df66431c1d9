package models

import "testing"

func TestOutcomeRecords(t *testing.T) {
	out := &JobOutcome{Targets: []TargetURL{
		{URL: "https://x.example/a", Status: TargetDone, Record: Record{FieldURL: "https://x.example/a", "name": "A"}},
		{URL: "https://x.example/b", Status: TargetFailed, Error: "HTTP 404", ErrorKind: "FETCH", Attempts: 1},
		{URL: "https://x.example/c", Status: TargetPending},
		{URL: "https://x.example/d", Status: TargetDone, Record: Record{FieldURL: "https://x.example/d"}},
	}}

	all := out.Records(true)
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	failed := all[1]
	if failed.URL() != "https://x.example/b" || failed[FieldStatus] != "failed" || failed[FieldError] != "HTTP 404" {
		t.Errorf("failed target should keep its error in place, got %v", failed)
	}
	if failed["attempts"] != 1 || failed["error_kind"] != "FETCH" {
		t.Errorf("unexpected failure details %v", failed)
	}

	done := out.Records(false)
	if len(done) != 2 || done[0]["name"] != "A" || done[1].URL() != "https://x.example/d" {
		t.Errorf("expected only done records, got %v", done)
	}
}
