package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBuildAuditEventIncludesRequiredFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/product/7/requestprice", nil)
	req.Header.Set("X-Request-Id", "req-test-1")
	req.RemoteAddr = "127.0.0.1:12345"

	ev := BuildAuditEvent(req, AuditInput{
		EventName:   "price.request.submit",
		ActorUserID: "42",
		TargetType:  "product",
		TargetID:    "7",
		Action:      "upsert",
		Outcome:     "success",
		Reason:      "created",
	})

	if ev.EventVersion != 1 {
		t.Fatalf("expected event version 1, got %d", ev.EventVersion)
	}
	if ev.ActorIP != "127.0.0.1" {
		t.Fatalf("unexpected actor ip: %s", ev.ActorIP)
	}
	if ev.RequestID != "req-test-1" {
		t.Fatalf("unexpected request id: %s", ev.RequestID)
	}
	if _, err := time.Parse(time.RFC3339, ev.TS); err != nil {
		t.Fatalf("expected RFC3339 ts, got %q err=%v", ev.TS, err)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
}

func TestBuildAuditEventDefaultsAnonymousActor(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/user/signin", nil)
	ev := BuildAuditEvent(req, AuditInput{EventName: "auth.signin", TargetType: "user", Action: "signin", Outcome: "failure"})
	if ev.ActorUserID != "anonymous" || ev.TargetID != "none" || ev.Reason != "none" {
		t.Fatalf("expected defaults, got %+v", ev)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
}

func TestAuditEventValidateRejectsMissingEventName(t *testing.T) {
	ev := AuditEvent{
		EventVersion: 1,
		ActorUserID:  "42",
		ActorIP:      "127.0.0.1",
		TargetType:   "post",
		TargetID:     "9",
		Action:       "like",
		Outcome:      "success",
		Reason:       "ok",
		RequestID:    "req-1",
		TS:           time.Now().UTC().Format(time.RFC3339),
	}
	if err := ev.Validate(); err == nil {
		t.Fatal("expected validation error for missing event_name")
	}
}

func TestEmitAuditWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	req := httptest.NewRequest("POST", "/api/v1/post/9/like", nil)
	EmitAudit(req, AuditInput{
		EventName:   "post.reaction",
		ActorUserID: "3",
		TargetType:  "post",
		TargetID:    "9",
		Action:      "like",
		Outcome:     "success",
	}, "likes", 4)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["msg"] != "audit" || line["event_name"] != "post.reaction" || line["likes"] != float64(4) {
		t.Fatalf("unexpected audit line: %v", line)
	}
}
