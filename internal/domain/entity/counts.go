package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LabelCounts maps labels to counts, remembering the order in which labels first appeared.
// A label that was never incremented is absent; a stored zero cannot exist.
// The zero value is ready to use.
type LabelCounts struct {
	order  []string
	counts map[string]int
}

// NewLabelCounts returns an empty mapping.
func NewLabelCounts() *LabelCounts {
	return &LabelCounts{counts: make(map[string]int)}
}

// Inc adds one to label.
func (c *LabelCounts) Inc(label string) {
	c.Add(label, 1)
}

// Add adds n (which must be positive) to label. Non-positive n is ignored.
func (c *LabelCounts) Add(label string, n int) {
	if n <= 0 {
		return
	}
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, ok := c.counts[label]; !ok {
		c.order = append(c.order, label)
	}
	c.counts[label] += n
}

// Get returns the count for label, zero when absent.
func (c *LabelCounts) Get(label string) int {
	if c == nil {
		return 0
	}
	return c.counts[label]
}

// Has reports whether label has been counted at least once.
func (c *LabelCounts) Has(label string) bool {
	if c == nil {
		return false
	}
	_, ok := c.counts[label]
	return ok
}

// Len is the number of distinct labels.
func (c *LabelCounts) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Labels returns the labels in first-seen order.
func (c *LabelCounts) Labels() []string {
	if c == nil {
		return []string{}
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Total is the sum of all counts.
func (c *LabelCounts) Total() int {
	total := 0
	if c == nil {
		return total
	}
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Each calls fn for every label in first-seen order.
func (c *LabelCounts) Each(fn func(label string, n int)) {
	if c == nil {
		return
	}
	for _, label := range c.order {
		fn(label, c.counts[label])
	}
}

// MarshalJSON writes a JSON object whose keys keep first-seen order, so identical
// detections always serialize to identical bytes.
func (c *LabelCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	c.Each(func(label string, n int) {
		if err != nil {
			return
		}
		key, kerr := json.Marshal(label)
		if kerr != nil {
			err = kerr
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", n)
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of label -> count, keeping key order.
// Zero or negative counts are rejected.
func (c *LabelCounts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("label counts: expected object, got %v", tok)
	}
	*c = LabelCounts{counts: make(map[string]int)}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("label counts: unexpected key %v", tok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("label counts: %q: %w", label, err)
		}
		if n < 1 {
			return fmt.Errorf("label counts: %q has count %d", label, n)
		}
		c.Add(label, n)
	}
	_, err = dec.Token()
	return err
}
