package cardname

import (
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		raw   string
		front string
		back  string
	}{
		{"Lightning Bolt", "LIGHTNING BOLT", ""},
		{"Jötun Grunt", "JOTUN GRUNT", ""},
		{"Lim-Dûl's Vault", "LIM-DUL'S VAULT", ""},
		{"Fire // Ice", "FIRE", "ICE"},
		{"  Séance  ", "SEANCE", ""},
		{"Who // What // When", "WHO", "WHAT // WHEN"},
	}
	for _, tc := range cases {
		got := Resolve(tc.raw)
		if got.Front != tc.front || got.Back != tc.back {
			t.Fatalf("Resolve(%q)=%#v want front=%q back=%q", tc.raw, got, tc.front, tc.back)
		}
	}
}

func TestResolve_BlankHasNoIdentity(t *testing.T) {
	for _, raw := range []string{"", "   "} {
		if n := Resolve(raw); n.OK() || n.Back != "" {
			t.Fatalf("Resolve(%q)=%#v want zero", raw, n)
		}
	}
}

func TestResolve_CosmeticVariantsShareKey(t *testing.T) {
	if Key("Æther Vial") != Key("Æther vial") {
		t.Fatalf("case variants must share a key")
	}
	if Key("Dandân") != Key("Dandan") {
		t.Fatalf("accent variants must share a key")
	}
}

func TestFull(t *testing.T) {
	if got := Resolve("fire // ice").Full(); got != "FIRE // ICE" {
		t.Fatalf("Full()=%q", got)
	}
	if got := Resolve("Opt").Full(); got != "OPT" {
		t.Fatalf("Full()=%q", got)
	}
}

func TestSplitTypeLine(t *testing.T) {
	got := SplitTypeLine("Creature — Human Wizard // Sorcery — Adventure")
	want := []string{"Creature", "Human Wizard", "Sorcery", "Adventure"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitTypeLine=%#v want %#v", got, want)
	}
	if SplitTypeLine("  ") != nil {
		t.Fatalf("blank type line should split to nil")
	}
}
