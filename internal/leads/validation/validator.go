// Package validation turns an untyped lead candidate into a NormalizedLead,
// collecting every field and cross-field violation instead of stopping at the first.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/sanitize"
	platformvalidator "buyer_crm_backend/platform/validator"
)

// Field paths as they appear in candidates and error reports.
const (
	PathFullName     = "fullName"
	PathEmail        = "email"
	PathPhone        = "phone"
	PathCity         = "city"
	PathPropertyType = "propertyType"
	PathBHK          = "bhk"
	PathPurpose      = "purpose"
	PathBudgetMin    = "budgetMin"
	PathBudgetMax    = "budgetMax"
	PathTimeline     = "timeline"
	PathSource       = "source"
	PathStatus       = "status"
	PathNotes        = "notes"
	PathTags         = "tags"
)

var fieldOrder = []string{
	PathFullName, PathEmail, PathPhone, PathCity, PathPropertyType, PathBHK, PathPurpose,
	PathBudgetMin, PathBudgetMax, PathTimeline, PathSource, PathStatus, PathNotes, PathTags,
}

const (
	MsgBHKRequired   = "BHK is required for Apartment or Villa"
	MsgBHKNotAllowed = "BHK is only allowed for Apartment or Villa"
	MsgBudgetOrder   = "Max budget must be greater than or equal to Min budget"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10,15}$`)
)

// FieldError is one violation addressed by field path.
type FieldError = platformvalidator.FieldError

// Errors is the full list of violations found in one candidate.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Path + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether any violation was recorded for path.
func (e *Errors) Has(path string) bool {
	for _, f := range e.Fields {
		if f.Path == path {
			return true
		}
	}
	return false
}

// AppError converts the violations into the shared error taxonomy.
func (e *Errors) AppError() *apperr.Error {
	return apperr.Wrap(apperr.KindValidation, "validation failed", e).WithDetails(e.Fields)
}

// candidate is the typed intermediate form checked by struct tags.
type candidate struct {
	FullName     string  `json:"fullName" validate:"required,min=2"`
	Email        *string `json:"email" validate:"omitnil,leademail"`
	Phone        string  `json:"phone" validate:"required,leadphone"`
	City         string  `json:"city" validate:"required,city"`
	PropertyType string  `json:"propertyType" validate:"required,propertytype"`
	BHK          string  `json:"bhk" validate:"omitempty,bhk"`
	Purpose      string  `json:"purpose" validate:"required,purpose"`
	BudgetMin    *int64  `json:"budgetMin"`
	BudgetMax    *int64  `json:"budgetMax"`
	Timeline     string  `json:"timeline" validate:"required,timeline"`
	Source       string  `json:"source" validate:"required,source"`
	Status       string  `json:"status" validate:"required,status"`
	Notes        *string `json:"notes" validate:"omitnil,max=1000"`
	Tags         []string
}

// Validator checks lead candidates. It is safe for concurrent use.
type Validator struct {
	v *platformvalidator.Validator
}

// New builds a Validator with the lead rules registered.
func New() *Validator {
	v := platformvalidator.New()
	rules := map[string]func(string) bool{
		"leademail":    emailPattern.MatchString,
		"leadphone":    phonePattern.MatchString,
		"city":         domain.IsCity,
		"propertytype": domain.IsPropertyType,
		"purpose":      domain.IsPurpose,
		"status":       domain.IsStatus,
		"bhk":          inList(domain.HumanBHKs()),
		"timeline":     inList(domain.HumanTimelines()),
		"source":       inList(domain.HumanSources()),
	}
	for tag, ok := range rules {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return ok(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("register %s rule: %v", tag, err))
		}
	}
	return &Validator{v: v}
}

func inList(values []string) func(string) bool {
	return func(s string) bool {
		for _, v := range values {
			if v == s {
				return true
			}
		}
		return false
	}
}

// Validate decodes and checks candidate. On failure the error is *Errors listing every violation.
func (val *Validator) Validate(raw map[string]any) (domain.NormalizedLead, error) {
	if raw == nil {
		return domain.NormalizedLead{}, apperr.BadRequest("lead candidate is required")
	}

	c, decodeErrs := decode(raw)

	fieldErrs, err := val.v.Fields(c)
	if err != nil {
		return domain.NormalizedLead{}, apperr.Wrap(apperr.KindInternal, "validator failure", err)
	}

	errs := &Errors{Fields: decodeErrs}
	for _, fe := range fieldErrs {
		if errs.Has(fe.Path) {
			continue
		}
		errs.Fields = append(errs.Fields, FieldError{Path: fe.Path, Message: messageFor(fe, c)})
	}

	crossFieldRules(c, errs)

	if len(errs.Fields) > 0 {
		sortByField(errs.Fields)
		return domain.NormalizedLead{}, errs
	}

	return domain.NormalizedLead{
		FullName:     c.FullName,
		Email:        c.Email,
		Phone:        c.Phone,
		City:         domain.City(c.City),
		PropertyType: domain.PropertyType(c.PropertyType),
		BHK:          c.BHK,
		Purpose:      domain.Purpose(c.Purpose),
		BudgetMin:    c.BudgetMin,
		BudgetMax:    c.BudgetMax,
		Timeline:     c.Timeline,
		Source:       c.Source,
		Status:       domain.Status(c.Status),
		Notes:        c.Notes,
		Tags:         c.Tags,
	}, nil
}

// crossFieldRules run only when the fields they read are individually valid.
func crossFieldRules(c candidate, errs *Errors) {
	if !errs.Has(PathBudgetMin) && !errs.Has(PathBudgetMax) &&
		c.BudgetMin != nil && c.BudgetMax != nil && *c.BudgetMax < *c.BudgetMin {
		errs.Fields = append(errs.Fields, FieldError{Path: PathBudgetMax, Message: MsgBudgetOrder})
	}

	if !errs.Has(PathPropertyType) && !errs.Has(PathBHK) {
		residential := domain.PropertyType(c.PropertyType).Residential()
		switch {
		case residential && c.BHK == "":
			errs.Fields = append(errs.Fields, FieldError{Path: PathBHK, Message: MsgBHKRequired})
		case !residential && c.BHK != "":
			errs.Fields = append(errs.Fields, FieldError{Path: PathBHK, Message: MsgBHKNotAllowed})
		}
	}
}

func messageFor(fe FieldError, c candidate) string {
	switch fe.Path {
	case PathFullName:
		return "Full name must be at least 2 characters"
	case PathEmail:
		return "Invalid email"
	case PathPhone:
		return "Phone must be 10 to 15 digits"
	case PathNotes:
		return "Notes must be 1000 characters or less"
	case PathCity:
		return oneOfMessage(PathCity, c.City, domain.OneOf(domain.Cities))
	case PathPropertyType:
		return oneOfMessage(PathPropertyType, c.PropertyType, domain.OneOf(domain.PropertyTypes))
	case PathPurpose:
		return oneOfMessage(PathPurpose, c.Purpose, domain.OneOf(domain.Purposes))
	case PathStatus:
		return oneOfMessage(PathStatus, c.Status, domain.OneOf(domain.Statuses))
	case PathBHK:
		return oneOfMessage(PathBHK, c.BHK, strings.Join(domain.HumanBHKs(), " "))
	case PathTimeline:
		return oneOfMessage(PathTimeline, c.Timeline, strings.Join(domain.HumanTimelines(), " "))
	case PathSource:
		return oneOfMessage(PathSource, c.Source, strings.Join(domain.HumanSources(), " "))
	}
	return fe.Message
}

func oneOfMessage(path, value, allowed string) string {
	if value == "" {
		return path + " is required"
	}
	return fmt.Sprintf("%s must be one of: %s", path, strings.Join(strings.Fields(allowed), ", "))
}

func sortByField(fields []FieldError) {
	index := make(map[string]int, len(fieldOrder))
	for i, p := range fieldOrder {
		index[p] = i
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return index[fields[i].Path] < index[fields[j].Path]
	})
}

// decode maps the untyped candidate onto the typed form. Type mismatches are
// reported as field errors and leave the field at its zero value.
func decode(raw map[string]any) (candidate, []FieldError) {
	var c candidate
	var errs []FieldError
	fail := func(path, msg string) {
		errs = append(errs, FieldError{Path: path, Message: msg})
	}

	str := func(path string) (string, bool) {
		v, ok := raw[path]
		if !ok || v == nil {
			return "", true
		}
		s, ok := v.(string)
		if !ok {
			fail(path, path+" must be a string")
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	optStr := func(path string) *string {
		s, ok := str(path)
		if !ok || s == "" {
			return nil
		}
		return &s
	}
	budget := func(path string) *int64 {
		n, err := wholeNumber(raw[path])
		if err != nil {
			fail(path, path+" "+err.Error())
			return nil
		}
		return n
	}

	c.FullName, _ = str(PathFullName)
	c.FullName = sanitize.Text(c.FullName)
	c.Email = optStr(PathEmail)
	c.Phone, _ = str(PathPhone)
	c.City, _ = str(PathCity)
	c.PropertyType, _ = str(PathPropertyType)
	c.BHK, _ = str(PathBHK)
	c.Purpose, _ = str(PathPurpose)
	c.BudgetMin = budget(PathBudgetMin)
	c.BudgetMax = budget(PathBudgetMax)
	c.Timeline, _ = str(PathTimeline)
	c.Source, _ = str(PathSource)
	c.Status, _ = str(PathStatus)
	if c.Status == "" && !hasError(errs, PathStatus) {
		c.Status = string(domain.StatusNew)
	}
	c.Notes = sanitize.TextPtr(optStr(PathNotes))

	tags, err := decodeTags(raw[PathTags])
	if err != nil {
		fail(PathTags, err.Error())
	}
	c.Tags = tags

	return c, errs
}

func hasError(errs []FieldError, path string) bool {
	for _, e := range errs {
		if e.Path == path {
			return true
		}
	}
	return false
}

// wholeNumber accepts JSON numbers and numeric strings. "" and nil mean absent.
func wholeNumber(v any) (*int64, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		i := int64(n)
		return &i, nil
	case int64:
		return &n, nil
	case float64:
		f = n
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("must be a whole number")
		}
		return &i, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &i, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("must be a number")
		}
		f = parsed
	default:
		return nil, fmt.Errorf("must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("must be a whole number")
	}
	i := int64(f)
	return &i, nil
}

// decodeTags unwraps the accepted tag shapes into a de-duplicated list of plain strings.
func decodeTags(v any) ([]string, error) {
	var items []string
	switch t := v.(type) {
	case nil:
	case string:
		items = strings.Split(t, ",")
	case []string:
		items = t
	case []any:
		for _, item := range t {
			switch tag := item.(type) {
			case string:
				items = append(items, tag)
			case map[string]any:
				s, ok := tag["value"].(string)
				if !ok {
					return []string{}, fmt.Errorf("tags must be a list of strings")
				}
				items = append(items, s)
			default:
				return []string{}, fmt.Errorf("tags must be a list of strings")
			}
		}
	default:
		return []string{}, fmt.Errorf("tags must be a list of strings")
	}
	return DedupeTags(items), nil
}

// DedupeTags trims tags, drops blanks and keeps the first occurrence of each tag.
func DedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
