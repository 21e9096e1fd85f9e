package xid

import (
	"strings"
	"testing"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("bill")
	b := New("bill")
	if !strings.HasPrefix(a, "bill-") {
		t.Fatalf("expected bill- prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
}
