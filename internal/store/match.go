package store

import (
	"fmt"
	"sort"
)

// Matches reports whether doc satisfies every key of f.
func Matches(doc Document, f Filter) bool {
	for k, want := range f {
		got, ok := doc[k]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// GroupDocuments applies spec in memory.  Documents without a numeric
// MatchField are skipped.
func GroupDocuments(docs []Document, spec GroupSpec) []Group {
	type acc struct {
		n   int
		sum float64
	}
	buckets := map[string]*acc{}
	for _, d := range docs {
		v, ok := toFloat(d[spec.MatchField])
		if !ok || v <= spec.MatchAbove {
			continue
		}
		key := fmt.Sprint(d[spec.GroupField])
		if d[spec.GroupField] == nil {
			key = ""
		}
		a := buckets[key]
		if a == nil {
			a = &acc{}
			buckets[key] = a
		}
		a.n++
		if x, ok := toFloat(d[spec.AvgField]); ok {
			a.sum += x
		}
	}

	out := make([]Group, 0, len(buckets))
	for k, a := range buckets {
		out = append(out, Group{Key: k, Count: a.n, Avg: a.sum / float64(a.n)})
	}
	SortGroups(out)
	return out
}

// SortGroups orders by count descending, then key ascending.
func SortGroups(gs []Group) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].Count != gs[j].Count {
			return gs[i].Count > gs[j].Count
		}
		return gs[i].Key < gs[j].Key
	})
}
