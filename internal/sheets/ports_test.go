package sheets

import (
	"strings"
	"testing"

	"mealbook/internal/export"
	"mealbook/internal/ledger"
)

func TestOwnerLabel(t *testing.T) {
	tests := []struct {
		owner string
		want  string
	}{
		{"teacher-1", "teacher-1"},
		{"cô Hoa", "cô Hoa"},
	}
	for _, tt := range tests {
		if got := OwnerLabel(tt.owner); got != tt.want {
			t.Errorf("OwnerLabel(%q) = %q, want %q", tt.owner, got, tt.want)
		}
	}

	a, b := OwnerLabel("team:a"), OwnerLabel("team?a")
	if strings.ContainsAny(a, ":?") || strings.ContainsAny(b, ":?") {
		t.Errorf("labels keep forbidden characters: %q %q", a, b)
	}
	if a == b {
		t.Errorf("sanitized owners collide: %q", a)
	}

	long := strings.Repeat("x", 100)
	if got := OwnerLabel(long); len(got) > maxOwnerLabel+9 {
		t.Errorf("long owner label has %d bytes", len(got))
	}
	if OwnerLabel(long) == OwnerLabel(long+"y") {
		t.Error("truncated owners collide")
	}
}

func TestTabNameIncludesOwner(t *testing.T) {
	page := export.Page{Name: "Ngày 1-16"}
	alice := ledger.New(ledger.Key{OwnerID: "alice", Month: 3, Year: 2024})
	bob := ledger.New(ledger.Key{OwnerID: "bob", Month: 3, Year: 2024})

	if got := TabName(alice, page); got != "alice 2024-04 Ngày 1-16" {
		t.Errorf("TabName = %q", got)
	}
	if TabName(alice, page) == TabName(bob, page) {
		t.Error("owners share a tab")
	}
}
