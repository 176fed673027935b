// Package record implements the common row shape and the pure derivation
// rules shared by every phase: key derivation, parent-id parsing, the
// ingestion filter predicates, and the candidate-label regexes.
package record

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Record is a single row of the columnar store, post-ingestion.
// Field order is the canonical column order of the store.
type Record struct {
	ID                 string   `parquet:"id"`
	LinkID             string   `parquet:"link_id"`
	ParentID           string   `parquet:"parent_id,optional"`
	Group              string   `parquet:"subreddit"`
	Author             string   `parquet:"author"`
	Body               string   `parquet:"body"`
	Permalink          string   `parquet:"permalink"`
	CreatedUTC         float64  `parquet:"created_utc"`
	Ups                float64  `parquet:"ups"`
	Downs              float64  `parquet:"downs"`
	Key                string   `parquet:"sanitized_prefix"`
	CPUFilterHit       bool     `parquet:"cpu_filter_is_idea"`
	ClassifiedPositive bool     `parquet:"is_idea"`
	ClassifierScore    *float32 `parquet:"nlp_top_score,optional"`
}

// RawLine is the subset of a raw JSON line needed to derive a Record,
// shared across both the "submission" and "comment" kinds. Unknown or
// missing fields decode to the zero value, matching the ingestor's
// "ignore errors" JSON-reading posture.
type RawLine struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	LinkID        string  `json:"link_id"`
	ParentID      string  `json:"parent_id"`
	Group         string  `json:"subreddit"`
	Author        string  `json:"author"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Body          string  `json:"body"`
	Permalink     string  `json:"permalink"`
	CreatedUTC    float64 `json:"created_utc"`
	Ups           float64 `json:"ups"`
	Downs         float64 `json:"downs"`
	Distinguished string  `json:"distinguished"`
}

// Kind identifies which raw-file family a line came from.
type Kind string

const (
	KindSubmission Kind = "submission"
	KindComment    Kind = "comment"
)

// Normalize reshapes a RawLine into the common row shape: submissions
// synthesize body from title+selftext and have no parent; comments keep
// body and parent_id as-is.
func (r RawLine) Normalize(kind Kind) Record {
	rec := Record{
		ID:         r.ID,
		Group:      r.Group,
		Author:     r.Author,
		Permalink:  r.Permalink,
		CreatedUTC: r.CreatedUTC,
		Ups:        r.Ups,
		Downs:      r.Downs,
	}
	switch kind {
	case KindSubmission:
		rec.LinkID = r.Name
		rec.ParentID = ""
		rec.Body = r.Title + "\n" + r.Selftext
	default: // KindComment
		rec.LinkID = r.LinkID
		rec.ParentID = r.ParentID
		rec.Body = r.Body
	}
	rec.Key = DeriveKey(r.Group)
	rec.CPUFilterHit = IdeaPattern.MatchString(rec.Body)
	return rec
}

// sanitizeKeep matches ASCII alphanumerics and underscore only, used by
// DeriveKey.
var sanitizeKeep = regexp.MustCompile(`[a-zA-Z0-9_]`)

// DeriveKey derives the 2-character lowercase partition key from a group
// name: take the first two codepoints, keep only alphanumerics and
// underscore, lowercase. Idempotent when the input is already ≤2
// characters of that alphabet.
func DeriveKey(group string) string {
	runes := []rune(group)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	var b strings.Builder
	for _, r := range runes {
		if sanitizeKeep.MatchString(string(r)) {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

// SafeGroup keeps only alphanumerics and underscore from a group name,
// used by the partitioner to build a filesystem-safe directory name.
// Unlike DeriveKey it does not truncate to 2 codepoints.
func SafeGroup(group string) string {
	var b strings.Builder
	for _, r := range group {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseParentID resolves an opaque parent reference of the form
// "<kind>_<id>": if pid contains an underscore, the parent id is the
// segment after the first underscore; otherwise pid is itself the
// parent id. Never fails.
func ParseParentID(pid string) string {
	if idx := strings.IndexByte(pid, '_'); idx >= 0 {
		return pid[idx+1:]
	}
	return pid
}

// Filter predicate regexes, compiled once. All are case-insensitive.
var (
	// ExclusionPattern rejects bodies expressing wishful/unfounded ideation.
	ExclusionPattern = regexp.MustCompile(`(?i)why doesn't someone|wouldn't it be cool if|in a perfect world|they should just|if I won the lottery|magical solution|cure for cancer|world peace|free .* for everyone`)
	// IdeaPattern flags bodies that plausibly describe a concrete idea.
	IdeaPattern = regexp.MustCompile(`(?i)idea|solution|concept|opportunity|build|create|develop|imagine|what if|improve|new way|innovate`)
	// BotPattern matches the literal substring "bot" case-insensitively.
	BotPattern = regexp.MustCompile(`(?i)bot`)
)

// EngagementQuality computes the retention threshold score
// 0.8·ups + 0.2·len_chars(body). The formula mixes vote counts with
// character counts; it is only ever compared against a threshold, so
// the mismatch of units is tolerated and the formula is kept exactly.
func EngagementQuality(ups float64, body string) float64 {
	return 0.8*ups + 0.2*float64(utf8.RuneCountInString(body))
}

// Retain applies the ingestion filter rules in order; all must hold
// for a row to be kept.
func Retain(rec Record, distinguished string) bool {
	if BotPattern.MatchString(rec.Author) {
		return false
	}
	if distinguished == "moderator" || distinguished == "admin" {
		return false
	}
	if ExclusionPattern.MatchString(rec.Body) {
		return false
	}
	return EngagementQuality(rec.Ups, rec.Body) > 5.0
}
