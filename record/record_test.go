package record

import (
	"math"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"AskReddit", "as"},
		{"a", "a"},
		{"", ""},
		{"!!funny", ""},
		{"Dev_Ops", "de"},
		{"日本語test", ""}, // non-alphanumeric ascii filter drops non [a-zA-Z0-9_]
	}
	for _, c := range cases {
		if got := DeriveKey(c.in); got != c.want {
			t.Errorf("DeriveKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDeriveKeyInvariants(t *testing.T) {
	groups := []string{"AskReddit", "funny", "a", "_x", "123abc", ""}
	for _, g := range groups {
		k := DeriveKey(g)
		if len(k) > 2 {
			t.Errorf("DeriveKey(%q) = %q longer than 2", g, k)
		}
		for _, r := range k {
			ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
			if !ok {
				t.Errorf("DeriveKey(%q) = %q contains disallowed rune %q", g, k, r)
			}
		}
		if len(k) <= 2 {
			if got := DeriveKey(k); got != k {
				t.Errorf("DeriveKey not idempotent on %q: DeriveKey(k)=%q", k, got)
			}
		}
	}
}

func TestParseParentID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"t1_abc123", "abc123"},
		{"abc123", "abc123"},
		{"", ""},
		{"t3_t1_x", "t1_x"},
	}
	for _, c := range cases {
		if got := ParseParentID(c.in); got != c.want {
			t.Errorf("ParseParentID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRetainIngestionFilterExample(t *testing.T) {
	raw := RawLine{
		ID:            "a1",
		Group:         "AskReddit",
		Author:        "alice",
		Distinguished: "",
		Body:          "I have an idea: build X",
		Ups:           10,
	}
	rec := raw.Normalize(KindComment)
	if rec.Key != "as" {
		t.Errorf("key = %q, want as", rec.Key)
	}
	if !rec.CPUFilterHit {
		t.Error("expected cpu_filter_hit = true")
	}
	got := EngagementQuality(rec.Ups, rec.Body)
	want := 0.8*10 + 0.2*23 // the body is 23 characters long
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("engagement_quality = %v, want %v", got, want)
	}
	if !Retain(rec, raw.Distinguished) {
		t.Error("expected record to be retained")
	}
}

func TestRetainBotFilter(t *testing.T) {
	raw := RawLine{
		ID:     "a1",
		Group:  "AskReddit",
		Author: "helperBot",
		Body:   "I have an idea: build X",
		Ups:    10,
	}
	rec := raw.Normalize(KindComment)
	if Retain(rec, raw.Distinguished) {
		t.Error("expected record to be rejected for bot author")
	}
}

func TestRetainModeratorFilter(t *testing.T) {
	raw := RawLine{Author: "alice", Body: "build X idea", Ups: 100}
	rec := raw.Normalize(KindComment)
	if Retain(rec, "moderator") {
		t.Error("expected moderator-distinguished record to be rejected")
	}
}

func TestRetainExclusionPattern(t *testing.T) {
	raw := RawLine{Author: "alice", Body: "world peace would be great", Ups: 1000}
	rec := raw.Normalize(KindComment)
	if Retain(rec, "") {
		t.Error("expected exclusion-pattern record to be rejected")
	}
}

func TestNormalizeSubmissionSynthesizesBody(t *testing.T) {
	raw := RawLine{Title: "Title", Selftext: "Body text", Name: "t3_xyz"}
	rec := raw.Normalize(KindSubmission)
	if rec.Body != "Title\nBody text" {
		t.Errorf("body = %q", rec.Body)
	}
	if rec.ParentID != "" {
		t.Errorf("submission parent_id should be empty, got %q", rec.ParentID)
	}
	if rec.LinkID != "t3_xyz" {
		t.Errorf("link_id = %q", rec.LinkID)
	}
}

func TestSafeGroup(t *testing.T) {
	if got := SafeGroup("Ask Reddit!"); got != "AskReddit" {
		t.Errorf("SafeGroup = %q", got)
	}
}
