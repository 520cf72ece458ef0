// Package pipeline runs mathpipe's dataset stages over JSONL problem
// records: LLM-assisted classification, heuristic labeling, and
// train/val splitting.
package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/krello/mathpipe/internal/classify"
)

// Problem is the problem statement of one record.
type Problem struct {
	Text string `json:"text"`
}

// Attempt is one solution attempt with its code.
type Attempt struct {
	Code string `json:"code,omitempty"`
}

// Outcome records how the solution attempts fared. PassAtK is the
// 1-based index of the first passing attempt, zero when none passed.
type Outcome struct {
	PassAtK int `json:"pass_at_k,omitempty"`
}

// Record is one JSONL dataset entry.
type Record struct {
	ID        string              `json:"id,omitempty"`
	Problem   Problem             `json:"problem"`
	Code      string              `json:"code,omitempty"`
	Attempts  []Attempt           `json:"attempts,omitempty"`
	Outcome   *Outcome            `json:"outcome,omitempty"`
	Split     string              `json:"split,omitempty"`
	Structure *classify.Structure `json:"math_structure,omitempty"`
}

// SolutionCode returns the record's solution code, falling back to the
// first passing attempt when the top-level code is missing.
func (r *Record) SolutionCode() string {
	if r.Code != "" {
		return r.Code
	}
	if r.Outcome == nil {
		return ""
	}
	k := r.Outcome.PassAtK
	if k > 0 && k <= len(r.Attempts) {
		return r.Attempts[k-1].Code
	}
	return ""
}

// Fields extracts the classification inputs from the record.
func (r *Record) Fields() classify.Fields {
	return classify.NewFields(r.Problem.Text, r.SolutionCode())
}

// EnsureID assigns a fresh UUID when the record has no ID yet.
func (r *Record) EnsureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}

// maxLineBytes bounds a single JSONL line. Solution attempts can be
// large, so this is well past bufio's default.
const maxLineBytes = 16 << 20

// ReadRecords decodes a JSONL stream, skipping blank lines.
func ReadRecords(r io.Reader) ([]*Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	var recs []*Record
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec := &Record{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, fmt.Errorf("pipeline: line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: read records: %w", err)
	}
	return recs, nil
}

// WriteRecords encodes records as JSONL, one per line.
func WriteRecords(w io.Writer, recs []*Record) error {
	enc := json.NewEncoder(w)
	for i, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("pipeline: write record %d: %w", i, err)
		}
	}
	return nil
}
