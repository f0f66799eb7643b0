package outbound_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestClientSend(t *testing.T) {
	var received SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	err := c.Send(context.Background(), SendRequest{
		ConversationID: "conv-1",
		PhoneID:        "phone-1",
		ToNumber:       "+5215512345678",
		FromNumber:     "+5215587654321",
		Body:           "buenas tardes",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if received.Body != "buenas tardes" {
		t.Errorf("body = %q", received.Body)
	}
	if received.Direction != "outbound" {
		t.Errorf("direction = %q, want outbound", received.Direction)
	}
	if received.ClientRef == "" {
		t.Error("client_ref should be generated when absent")
	}
	if received.Timestamp.IsZero() {
		t.Error("timestamp should be stamped")
	}
}

func TestClientSendFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	if err := c.Send(context.Background(), SendRequest{Body: "x"}); err == nil {
		t.Fatal("non-2xx status must be an error")
	}
}

func TestClientSendUnconfigured(t *testing.T) {
	c := NewClient("", 5*time.Second, zap.NewNop())
	if err := c.Send(context.Background(), SendRequest{Body: "x"}); err == nil {
		t.Fatal("missing webhook URL must be an error")
	}
}
