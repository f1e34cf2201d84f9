package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUserToString(t *testing.T) {
	id := uuid.New()
	u := &User{
		Id:          id,
		Username:    "testuser",
		DisplayName: "Test User",
	}

	result := u.ToString()

	if len(result) == 0 {
		t.Error("ToString() returned empty string")
	}
	if !strings.Contains(result, "testuser") {
		t.Errorf("ToString() should contain username, got: %s", result)
	}
	if !strings.Contains(result, id.String()) {
		t.Errorf("ToString() should contain ID, got: %s", result)
	}
}

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences("abc")
	if p.KeyHash != "abc" {
		t.Errorf("Expected KeyHash 'abc', got '%s'", p.KeyHash)
	}
	if !p.HideZeroEvents {
		t.Error("HideZeroEvents should default to true")
	}
}

func TestCount(t *testing.T) {
	a := Count(0)
	b := Count(0)
	if a == nil || *a != 0 {
		t.Fatalf("Expected pointer to 0, got %v", a)
	}
	if a == b {
		t.Error("Count should return a fresh pointer each call")
	}
}
