package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getmockd/mimic/pkg/mock"
)

// Score weights. An exact path outranks a loose one, and both outrank a
// method match.
const (
	ScorePathExact = 10
	ScorePathLoose = 5
	ScoreMethod    = 3
)

// DefaultNearMisses is the number of candidates reported on a miss.
const DefaultNearMisses = 3

// FieldResult describes whether a single definition field matched.
type FieldResult struct {
	Field    string `json:"field"`
	Matched  bool   `json:"matched"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// NearMiss is a definition that partially matched a request.
type NearMiss struct {
	MockID string        `json:"mockId"`
	Name   string        `json:"name,omitempty"`
	Score  int           `json:"score"`
	Fields []FieldResult `json:"fields"`
	Reason string        `json:"reason"`
}

// Breakdown compares def against the request without short-circuiting.
func Breakdown(def *mock.Definition, method, path string) NearMiss {
	nm := NearMiss{MockID: def.ID, Name: def.Name}

	methodOK := MatchMethod(def.Method, method)
	if methodOK {
		nm.Score += ScoreMethod
	}
	nm.Fields = append(nm.Fields, FieldResult{Field: "method", Matched: methodOK, Expected: def.Method, Actual: method})

	pathOK := def.Path == path
	switch {
	case pathOK:
		nm.Score += ScorePathExact
	case looseEqual(def.Path, path):
		nm.Score += ScorePathLoose
	}
	nm.Fields = append(nm.Fields, FieldResult{Field: "path", Matched: pathOK, Expected: def.Path, Actual: path})

	nm.Reason = reason(nm.Fields)
	return nm
}

// CollectNearMisses returns up to topN definitions whose path is equal or
// nearly equal to the request path, best first. It is only called on a miss.
func CollectNearMisses(defs []*mock.Definition, method, path string, topN int) []NearMiss {
	if topN <= 0 {
		topN = DefaultNearMisses
	}

	var candidates []NearMiss
	for _, d := range defs {
		nm := Breakdown(d, method, path)
		if nm.Score <= ScoreMethod {
			continue
		}
		candidates = append(candidates, nm)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

// looseEqual ignores case and one trailing slash.
func looseEqual(a, b string) bool {
	trim := func(s string) string {
		if len(s) > 1 {
			return strings.TrimSuffix(s, "/")
		}
		return s
	}
	return strings.EqualFold(trim(a), trim(b))
}

func reason(fields []FieldResult) string {
	var matched []string
	var mismatch *FieldResult
	for i := range fields {
		if fields[i].Matched {
			matched = append(matched, fields[i].Field)
		} else if mismatch == nil {
			mismatch = &fields[i]
		}
	}
	if mismatch == nil {
		return "all fields matched"
	}
	msg := fmt.Sprintf("%s expected %q, got %q", mismatch.Field, mismatch.Expected, mismatch.Actual)
	if len(matched) == 0 {
		return msg
	}
	return strings.Join(matched, ", ") + " matched, but " + msg
}
