package utils

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, 409, "session is not live")

	if rec.Code != 409 {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "session is not live" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Transcript string `json:"transcript"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(""))
	if err := DecodeJSON(req, &dst, true); err != nil {
		t.Fatalf("empty body should be allowed: %v", err)
	}
	req = httptest.NewRequest("POST", "/", strings.NewReader(""))
	if err := DecodeJSON(req, &dst, false); err == nil {
		t.Fatal("empty body should be rejected")
	}
	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"transcript":"hi"}`))
	if err := DecodeJSON(req, &dst, false); err != nil || dst.Transcript != "hi" {
		t.Fatalf("unexpected decode result %q (%v)", dst.Transcript, err)
	}
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)
	if err := SendSSEEvent(rec, rec, "pending", map[string]string{"status": "generating"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	want := "event: pending\ndata: {\"status\":\"generating\"}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected frame %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("missing sse content type")
	}
}
