package domain

import (
	"fmt"
	"strings"

	"buyer_crm_backend/platform/apperr"
)

// InvalidEnumValueError reports a label that has no counterpart in the mapping table.
type InvalidEnumValueError struct {
	Field string
	Value string
}

func (e *InvalidEnumValueError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Field, e.Value)
}

// AppError converts the mapping failure into the shared error taxonomy.
func (e *InvalidEnumValueError) AppError() *apperr.Error {
	return apperr.Wrap(apperr.KindInvalidEnumValue, e.Error(), e).
		WithDetails(map[string]string{"field": e.Field, "value": e.Value})
}

func lookupStorage(table []enumPair, human string) (string, bool) {
	for _, p := range table {
		if p.human == human {
			return p.storage, true
		}
	}
	return "", false
}

func lookupHuman(table []enumPair, storage string) (string, bool) {
	for _, p := range table {
		if p.storage == storage {
			return p.human, true
		}
	}
	return "", false
}

// MapBHK maps a human BHK label to its storage code. Empty input means no BHK.
func MapBHK(human string) (*BHK, error) {
	if human == "" {
		return nil, nil
	}
	code, ok := lookupStorage(bhkTable, human)
	if !ok {
		return nil, &InvalidEnumValueError{Field: FieldBHK, Value: human}
	}
	b := BHK(code)
	return &b, nil
}

// MapTimeline maps a human timeline label to its storage code.
func MapTimeline(human string) (Timeline, error) {
	code, ok := lookupStorage(timelineTable, human)
	if !ok {
		return "", &InvalidEnumValueError{Field: FieldTimeline, Value: human}
	}
	return Timeline(code), nil
}

// MapSource maps a human source label to its storage code.
func MapSource(human string) (Source, error) {
	code, ok := lookupStorage(sourceTable, human)
	if !ok {
		return "", &InvalidEnumValueError{Field: FieldSource, Value: human}
	}
	return Source(code), nil
}

// BHKLabel returns the human label for a stored BHK. A nil BHK yields "".
func BHKLabel(b *BHK) string {
	if b == nil {
		return ""
	}
	label, ok := lookupHuman(bhkTable, string(*b))
	if !ok {
		return string(*b)
	}
	return label
}

// TimelineLabel returns the human label for a stored timeline.
func TimelineLabel(t Timeline) string {
	if label, ok := lookupHuman(timelineTable, string(t)); ok {
		return label
	}
	return string(t)
}

// SourceLabel returns the human label for a stored source.
func SourceLabel(s Source) string {
	if label, ok := lookupHuman(sourceTable, string(s)); ok {
		return label
	}
	return string(s)
}

// NormalizeBHK accepts a human label or a storage code and returns the human label.
// Blank input and "-" yield "" (no BHK).
func NormalizeBHK(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" || v == "-" {
		return "", nil
	}
	if _, ok := lookupStorage(bhkTable, v); ok {
		return v, nil
	}
	if human, ok := lookupHuman(bhkTable, v); ok {
		return human, nil
	}
	return "", &InvalidEnumValueError{Field: FieldBHK, Value: v}
}

func tableFor(field string) ([]enumPair, bool) {
	switch field {
	case FieldBHK:
		return bhkTable, true
	case FieldTimeline:
		return timelineTable, true
	case FieldSource:
		return sourceTable, true
	}
	return nil, false
}

// ToStorage maps a human label of the named field to its storage code.
func ToStorage(field, human string) (string, error) {
	table, ok := tableFor(field)
	if !ok {
		return "", fmt.Errorf("field %q has no enum mapping", field)
	}
	code, ok := lookupStorage(table, human)
	if !ok {
		return "", &InvalidEnumValueError{Field: field, Value: human}
	}
	return code, nil
}

// ToHuman maps a storage code of the named field back to its human label.
func ToHuman(field, storage string) (string, error) {
	table, ok := tableFor(field)
	if !ok {
		return "", fmt.Errorf("field %q has no enum mapping", field)
	}
	label, ok := lookupHuman(table, storage)
	if !ok {
		return "", &InvalidEnumValueError{Field: field, Value: storage}
	}
	return label, nil
}

// NewStoredFields converts a validated lead into its storage representation.
func NewStoredFields(n NormalizedLead) (StoredFields, error) {
	bhk, err := MapBHK(n.BHK)
	if err != nil {
		return StoredFields{}, err
	}
	timeline, err := MapTimeline(n.Timeline)
	if err != nil {
		return StoredFields{}, err
	}
	source, err := MapSource(n.Source)
	if err != nil {
		return StoredFields{}, err
	}

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}

	return StoredFields{
		FullName:     n.FullName,
		Email:        n.Email,
		Phone:        n.Phone,
		City:         n.City,
		PropertyType: n.PropertyType,
		BHK:          bhk,
		Purpose:      n.Purpose,
		BudgetMin:    n.BudgetMin,
		BudgetMax:    n.BudgetMax,
		Timeline:     timeline,
		Source:       source,
		Status:       n.Status,
		Notes:        n.Notes,
		Tags:         tags,
	}, nil
}

// ToView converts a stored lead into the human-labelled form returned to callers.
func ToView(l Lead) LeadView {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return LeadView{
		ID:           l.ID,
		FullName:     l.FullName,
		Email:        l.Email,
		Phone:        l.Phone,
		City:         l.City,
		PropertyType: l.PropertyType,
		BHK:          BHKLabel(l.BHK),
		Purpose:      l.Purpose,
		BudgetMin:    l.BudgetMin,
		BudgetMax:    l.BudgetMax,
		Timeline:     TimelineLabel(l.Timeline),
		Source:       SourceLabel(l.Source),
		Status:       l.Status,
		Notes:        l.Notes,
		Tags:         tags,
		OwnerID:      l.OwnerID,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}
