package ratelimit

import (
	"testing"
	"time"
)

func TestInMemoryLimiterPerOwner(t *testing.T) {
	l := NewInMemoryLimiter(2, time.Hour, 2)

	if !l.Allow("alice") || !l.Allow("alice") {
		t.Fatal("burst not allowed")
	}
	if l.Allow("alice") {
		t.Error("third request inside the window allowed")
	}
	if !l.Allow("bob") {
		t.Error("another owner shares alice's bucket")
	}
}

func TestInMemoryLimiterDisabled(t *testing.T) {
	l := NewInMemoryLimiter(0, time.Minute, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("alice") {
			t.Fatalf("request %d denied with limiting disabled", i)
		}
	}
}
