package envutil

import (
	"testing"
	"time"
)

func TestInt(t *testing.T) {
	t.Setenv("CA_TEST_INT", " 12 ")
	if got := Int("CA_TEST_INT", 3); got != 12 {
		t.Fatalf("Int=%d want 12", got)
	}
	t.Setenv("CA_TEST_INT", "twelve")
	if got := Int("CA_TEST_INT", 3); got != 3 {
		t.Fatalf("Int=%d want default 3", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{"on": true, "FALSE": false, "": true, "maybe": true}
	for raw, want := range cases {
		t.Setenv("CA_TEST_BOOL", raw)
		if got := Bool("CA_TEST_BOOL", true); got != want {
			t.Fatalf("Bool(%q)=%v want %v", raw, got, want)
		}
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("CA_TEST_DUR", "45")
	if got := Duration("CA_TEST_DUR", time.Second); got != 45*time.Second {
		t.Fatalf("Duration=%v", got)
	}
	t.Setenv("CA_TEST_DUR", "1500ms")
	if got := Duration("CA_TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("Duration=%v", got)
	}
	t.Setenv("CA_TEST_DUR", "soon")
	if got := Duration("CA_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("Duration=%v want default", got)
	}
}

func TestFloatAndString(t *testing.T) {
	t.Setenv("CA_TEST_FLOAT", "0.25")
	if got := Float("CA_TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float=%v", got)
	}
	if got := String("CA_TEST_UNSET_STRING", "neo4j"); got != "neo4j" {
		t.Fatalf("String=%q", got)
	}
}
