package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ImageMatch is one scored (reference, candidate) comparison.
type ImageMatch struct {
	Reference         string  `json:"reference"`
	ReferenceRotation int     `json:"reference_rotation"`
	Candidate         string  `json:"candidate"`
	Rotation          int     `json:"rotation"`
	Score             float64 `json:"score"`
}

// MatchResult maps reference identifiers to the candidate identifiers that
// matched them. Keys keep insertion order and each list keeps the order it was
// given in. It encodes to a JSON object with keys in that order.
type MatchResult struct {
	keys    []string
	matches map[string][]string
}

// NewMatchResult returns an empty result.
func NewMatchResult() *MatchResult {
	return &MatchResult{matches: make(map[string][]string)}
}

// Set records candidates for ref. A new ref is appended to the key order; an
// existing one keeps its position and gets the new list.
func (r *MatchResult) Set(ref string, candidates []string) {
	if _, ok := r.matches[ref]; !ok {
		r.keys = append(r.keys, ref)
	}
	list := make([]string, len(candidates))
	copy(list, candidates)
	r.matches[ref] = list
}

// Get returns the candidates recorded for ref.
func (r *MatchResult) Get(ref string) ([]string, bool) {
	list, ok := r.matches[ref]
	return list, ok
}

// Keys returns the reference identifiers in order.
func (r *MatchResult) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len is the number of reference identifiers.
func (r *MatchResult) Len() int {
	return len(r.keys)
}

// MatchCount is the total number of (reference, candidate) pairs listed.
func (r *MatchResult) MatchCount() int {
	n := 0
	for _, list := range r.matches {
		n += len(list)
	}
	return n
}

// Map returns a copy as a plain map.
func (r *MatchResult) Map() map[string][]string {
	out := make(map[string][]string, len(r.matches))
	for k, v := range r.matches {
		out[k] = append([]string{}, v...)
	}
	return out
}

// MarshalJSON writes an object whose keys follow insertion order. Empty lists
// are written as [].
func (r *MatchResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		list := r.matches[key]
		if list == nil {
			list = []string{}
		}
		v, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object produced by MarshalJSON, keeping key order.
func (r *MatchResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("match result must be a JSON object")
	}

	result := NewMatchResult()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var list []string
		if err := dec.Decode(&list); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		result.Set(key, list)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = *result
	return nil
}
