package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ItemType is the kind of value a checklist item holds.
type ItemType string

const (
	ItemCheckbox ItemType = "checkbox"
	ItemText     ItemType = "text"
)

// Fixed checklist keys used by trades journaled without a strategy definition.
const (
	KeyH1TrendAligned   = "h1_trend_aligned"
	KeyM15TrendAligned  = "m15_trend_aligned"
	KeyM5StructureMet   = "m5_structure_met"
	KeyExitRuleFollowed = "exit_rule_followed"
	KeyConfirmations    = "confirmations"
)

// LegacyChecklistKeys are the boolean keys checked when no strategy is known.
var LegacyChecklistKeys = []string{
	KeyH1TrendAligned, KeyM15TrendAligned, KeyM5StructureMet, KeyExitRuleFollowed,
}

// ChecklistItem is one user-defined entry of a strategy checklist.
type ChecklistItem struct {
	ID       string   `json:"id" yaml:"id" dynamodbav:"id"`
	Label    string   `json:"label" yaml:"label" dynamodbav:"label"`
	Type     ItemType `json:"type" yaml:"type" dynamodbav:"type"`
	Required *bool    `json:"required,omitempty" yaml:"required,omitempty" dynamodbav:"required,omitempty"`
}

// IsRequired reports whether the item blocks adherence when unmet.
// Checkbox items are required unless explicitly marked otherwise.
func (i ChecklistItem) IsRequired() bool {
	if i.Required != nil {
		return *i.Required
	}
	return i.Type == ItemCheckbox
}

// Strategy is a named, owner-scoped checklist definition.
type Strategy struct {
	ID                       string          `json:"id" yaml:"-" dynamodbav:"id"`
	OwnerID                  string          `json:"owner_id" yaml:"-" dynamodbav:"owner_id"`
	Name                     string          `json:"name" yaml:"name" dynamodbav:"name"`
	Items                    []ChecklistItem `json:"items" yaml:"items" dynamodbav:"items"`
	ConfirmationsPlaceholder string          `json:"confirmations_placeholder,omitempty" yaml:"confirmations_placeholder,omitempty" dynamodbav:"confirmations_placeholder,omitempty"`
	CreatedAt                time.Time       `json:"created_at" yaml:"-" dynamodbav:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at" yaml:"-" dynamodbav:"updated_at"`
}

// Item returns the checklist item with the given ID.
func (s *Strategy) Item(id string) (ChecklistItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return ChecklistItem{}, false
}

// ChecklistValue is a tagged checklist value: a checkbox or a text answer.
type ChecklistValue struct {
	Kind    ItemType
	Checked bool
	Text    string
}

// Checked returns a checkbox value.
func Checked(v bool) ChecklistValue {
	return ChecklistValue{Kind: ItemCheckbox, Checked: v}
}

// Text returns a text value.
func Text(v string) ChecklistValue {
	return ChecklistValue{Kind: ItemText, Text: v}
}

// Checklist maps item IDs to values and remembers insertion order.
type Checklist struct {
	keys   []string
	values map[string]ChecklistValue
}

// NewChecklist returns an empty checklist.
func NewChecklist() Checklist {
	return Checklist{values: make(map[string]ChecklistValue)}
}

// Set stores v under key. Re-setting a key keeps its original position.
func (c *Checklist) Set(key string, v ChecklistValue) {
	if c.values == nil {
		c.values = make(map[string]ChecklistValue)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = v
}

// Get returns the value stored under key.
func (c Checklist) Get(key string) (ChecklistValue, bool) {
	v, ok := c.values[key]
	return v, ok
}

// IsChecked reports whether key holds a checked checkbox.
func (c Checklist) IsChecked(key string) bool {
	v, ok := c.values[key]
	return ok && v.Kind == ItemCheckbox && v.Checked
}

// TextValue returns the text stored under key, or "".
func (c Checklist) TextValue(key string) string {
	v, ok := c.values[key]
	if !ok || v.Kind != ItemText {
		return ""
	}
	return v.Text
}

// Keys returns the keys in insertion order.
func (c Checklist) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of entries.
func (c Checklist) Len() int { return len(c.keys) }

// MarshalJSON encodes the checklist as an object in insertion order.
// Checkbox values become booleans and text values become strings.
func (c Checklist) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := c.values[k]
		var val []byte
		if v.Kind == ItemText {
			val, err = json.Marshal(v.Text)
		} else {
			val, err = json.Marshal(v.Checked)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of booleans and strings, keeping key order.
func (c *Checklist) UnmarshalJSON(data []byte) error {
	*c = NewChecklist()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("checklist: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("checklist: expected key, got %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case bool:
			c.Set(key, Checked(v))
		case string:
			c.Set(key, Text(v))
		case nil:
			// skip nulls
		default:
			return fmt.Errorf("checklist: unsupported value for %q: %v", key, tok)
		}
	}

	_, err = dec.Token()
	return err
}
