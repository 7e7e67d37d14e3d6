package domain

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Diff keys.
const (
	DiffCreated = "created"
	DiffBefore  = "before"
	DiffAfter   = "after"
)

// Diff is the JSON payload stored with a history row. Snapshots are whole records.
// A nil value under "after" marks a deletion.
type Diff map[string]*LeadView

// Snapshot captures the full human-labelled state of a lead.
func Snapshot(l Lead) *LeadView {
	v := ToView(l)
	v.Tags = append([]string{}, v.Tags...)
	return &v
}

// CreatedDiff records a creation.
func CreatedDiff(s *LeadView) Diff {
	return Diff{DiffCreated: s}
}

// UpdatedDiff records a replacement of before by after.
func UpdatedDiff(before, after *LeadView) Diff {
	return Diff{DiffBefore: before, DiffAfter: after}
}

// DeletedDiff records a deletion.
func DeletedDiff(before *LeadView) Diff {
	return Diff{DiffBefore: before, DiffAfter: nil}
}

// Kind names the change recorded by the diff: "created", "updated" or "deleted".
func (d Diff) Kind() string {
	if _, ok := d[DiffCreated]; ok {
		return "created"
	}
	if after, ok := d[DiffAfter]; ok && after == nil {
		return "deleted"
	}
	return "updated"
}

// FieldChange is one key whose value differs between the two sides of a diff.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// ChangedFields compares the before and after snapshots key by key and returns
// the differing keys in name order. A creation reports every non-empty field as
// changed from nil; a deletion reports every field as changed to nil.
func ChangedFields(d Diff) []FieldChange {
	var before, after map[string]any
	if created, ok := d[DiffCreated]; ok {
		after = fieldsOf(created)
	} else {
		before = fieldsOf(d[DiffBefore])
		after = fieldsOf(d[DiffAfter])
	}

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	changes := make([]FieldChange, 0, len(names))
	for _, name := range names {
		b, a := before[name], after[name]
		if reflect.DeepEqual(b, a) {
			continue
		}
		changes = append(changes, FieldChange{Field: name, Before: b, After: a})
	}
	return changes
}

func fieldsOf(v *LeadView) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	for k, val := range out {
		if val == nil {
			delete(out, k)
		}
	}
	return out
}
