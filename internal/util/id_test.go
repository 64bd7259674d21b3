package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("msg")
	if !strings.HasPrefix(id, "msg_") {
		t.Fatalf("expected msg_ prefix, got %q", id)
	}
	if len(id) != len("msg_")+32 {
		t.Fatalf("unexpected id length %d", len(id))
	}
	if NewID("") == NewID("") {
		t.Fatal("expected distinct ids")
	}
}

func TestNewItemIDStrictlyIncreasing(t *testing.T) {
	prev := NewItemID()
	for i := 0; i < 1000; i++ {
		next := NewItemID()
		if next <= prev {
			t.Fatalf("id %d not greater than %d", next, prev)
		}
		prev = next
	}
}
