package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/punchcard/internal/model"
)

var (
	testRestaurant = model.Restaurant{ID: 1, Name: "Harbor Cafe", Slug: "harbor"}
	testCustomer   = model.Customer{ID: 2, FirstName: "Alice", Email: "alice@example.com", TotalPoints: 250, LifetimePoints: 600}
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient("test-token", "rewards@example.com", "https://punchcard.test/",
		WithEndpoint(server.URL), WithHTTPClient(server.Client()))
}

func TestSendWelcome(t *testing.T) {
	var received message
	var gotToken string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	})

	if err := client.SendWelcome(context.Background(), testRestaurant, testCustomer); err != nil {
		t.Fatalf("send welcome: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "rewards@example.com" {
		t.Errorf("From = %q, want %q", received.From, "rewards@example.com")
	}
	if received.Subject != "Welcome to Harbor Cafe rewards" {
		t.Errorf("Subject = %q, want welcome subject", received.Subject)
	}
	if !strings.Contains(received.TextBody, "silver member") {
		t.Errorf("TextBody = %q, want tier mention", received.TextBody)
	}
	if !strings.Contains(received.TextBody, "https://punchcard.test/r/harbor/wallet") {
		t.Errorf("TextBody = %q, want wallet link", received.TextBody)
	}
	if received.Tag != "welcome" {
		t.Errorf("Tag = %q, want welcome", received.Tag)
	}
	if received.MessageStream != "outbound" {
		t.Errorf("MessageStream = %q, want outbound", received.MessageStream)
	}
}

func TestSendRedemptionReceipt(t *testing.T) {
	var received message
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	})

	reward := model.Reward{ID: 3, Name: "Free <Coffee>", PointsRequired: 150}
	entry := model.Transaction{Ref: "8f14e45f-ceea-4e67-a1d0-1b2c3d4e5f60", Points: -150}
	if err := client.SendRedemptionReceipt(context.Background(), testRestaurant, testCustomer, reward, entry); err != nil {
		t.Fatalf("send receipt: %v", err)
	}

	if !strings.Contains(received.TextBody, entry.Ref) {
		t.Errorf("TextBody = %q, want receipt ref", received.TextBody)
	}
	if !strings.Contains(received.TextBody, "Remaining balance: 100 points") {
		t.Errorf("TextBody = %q, want remaining balance 100", received.TextBody)
	}
	if strings.Contains(received.HtmlBody, "<Coffee>") {
		t.Error("HtmlBody should escape reward name")
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "rewards@example.com", "https://punchcard.test")

	err := client.SendWelcome(context.Background(), testRestaurant, testCustomer)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"ErrorCode": 300, "Message": "Invalid 'To' address"}`))
	})

	err := client.SendWelcome(context.Background(), testRestaurant, testCustomer)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Code != 300 {
		t.Errorf("APIError = %+v, want status 422 code 300", apiErr)
	}
}

func TestSendAPIErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.SendWelcome(context.Background(), testRestaurant, testCustomer)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("err = %v, want APIError with status 500", err)
	}
}

func TestConfigured(t *testing.T) {
	if !NewClient("token", "from@test.com", "https://test.com").Configured() {
		t.Error("expected Configured() = true")
	}
	if NewClient("", "from@test.com", "https://test.com").Configured() {
		t.Error("expected Configured() = false")
	}
}
