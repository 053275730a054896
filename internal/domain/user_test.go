package domain

import (
	"testing"
)

func TestNewUserID(t *testing.T) {
	id1 := NewUserID()
	id2 := NewUserID()

	if id1 == "" {
		t.Error("Expected non-empty user ID")
	}

	if id1 == id2 {
		t.Error("Expected unique user IDs")
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "alice@example.com"},
		{"  Alice@Example.COM ", "alice@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSendMessageRequest_IsEmpty(t *testing.T) {
	if !(&SendMessageRequest{}).IsEmpty() {
		t.Error("Expected empty request to be empty")
	}
	if (&SendMessageRequest{Text: "hi"}).IsEmpty() {
		t.Error("Expected text request to be non-empty")
	}
	if (&SendMessageRequest{Image: "data:image/png;base64,AAAA"}).IsEmpty() {
		t.Error("Expected image request to be non-empty")
	}
}

func TestNewMessageID(t *testing.T) {
	if NewMessageID() == NewMessageID() {
		t.Error("Expected unique message IDs")
	}
}
