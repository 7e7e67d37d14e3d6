// Package domain holds the buyer lead model and the single source of truth
// for every fixed enumeration shared by validation, mapping, storage and queries.
package domain

import "strings"

// City is where the buyer wants the property.
type City string

const (
	CityChandigarh City = "Chandigarh"
	CityMohali     City = "Mohali"
	CityZirakpur   City = "Zirakpur"
	CityPanchkula  City = "Panchkula"
	CityOther      City = "Other"
)

// PropertyType is the kind of property the buyer is looking for.
type PropertyType string

const (
	PropertyTypeApartment PropertyType = "Apartment"
	PropertyTypeVilla     PropertyType = "Villa"
	PropertyTypePlot      PropertyType = "Plot"
	PropertyTypeOffice    PropertyType = "Office"
	PropertyTypeRetail    PropertyType = "Retail"
)

// Residential reports whether the property type carries a BHK category.
func (p PropertyType) Residential() bool {
	return p == PropertyTypeApartment || p == PropertyTypeVilla
}

// Purpose is whether the buyer wants to buy or rent.
type Purpose string

const (
	PurposeBuy  Purpose = "Buy"
	PurposeRent Purpose = "Rent"
)

// Status is the pipeline stage of a lead.
type Status string

const (
	StatusNew         Status = "New"
	StatusQualified   Status = "Qualified"
	StatusContacted   Status = "Contacted"
	StatusVisited     Status = "Visited"
	StatusNegotiation Status = "Negotiation"
	StatusConverted   Status = "Converted"
	StatusDropped     Status = "Dropped"
)

// BHK is the stored bedroom-hall-kitchen category.
type BHK string

const (
	BHKStudio BHK = "Studio"
	BHKOne    BHK = "One"
	BHKTwo    BHK = "Two"
	BHKThree  BHK = "Three"
	BHKFour   BHK = "Four"
)

// Timeline is the stored purchase horizon bucket.
type Timeline string

const (
	TimelineZeroToThreeMonths Timeline = "ZeroToThreeMonths"
	TimelineThreeToSixMonths  Timeline = "ThreeToSixMonths"
	TimelineMoreThanSixMonths Timeline = "MoreThanSixMonths"
	TimelineExploring         Timeline = "Exploring"
)

// Source is the stored acquisition channel.
type Source string

const (
	SourceWebsite  Source = "Website"
	SourceReferral Source = "Referral"
	SourceWalkIn   Source = "WalkIn"
	SourceCall     Source = "Call"
	SourceOther    Source = "Other"
)

// Cities lists every City in display order.
var Cities = []City{CityChandigarh, CityMohali, CityZirakpur, CityPanchkula, CityOther}

// PropertyTypes lists every PropertyType in display order.
var PropertyTypes = []PropertyType{
	PropertyTypeApartment, PropertyTypeVilla, PropertyTypePlot, PropertyTypeOffice, PropertyTypeRetail,
}

// Purposes lists every Purpose.
var Purposes = []Purpose{PurposeBuy, PurposeRent}

// Statuses lists every Status in pipeline order.
var Statuses = []Status{
	StatusNew, StatusQualified, StatusContacted, StatusVisited, StatusNegotiation, StatusConverted, StatusDropped,
}

// Field names of the mapped enumerations.
const (
	FieldBHK      = "bhk"
	FieldTimeline = "timeline"
	FieldSource   = "source"
)

// enumPair binds a human-facing label to its stored code.
type enumPair struct {
	human   string
	storage string
}

// Human labels are the wire representation; storage codes never leave the repository layer.
var (
	bhkTable = []enumPair{
		{"Studio", string(BHKStudio)},
		{"1", string(BHKOne)},
		{"2", string(BHKTwo)},
		{"3", string(BHKThree)},
		{"4", string(BHKFour)},
	}
	timelineTable = []enumPair{
		{"0-3m", string(TimelineZeroToThreeMonths)},
		{"3-6m", string(TimelineThreeToSixMonths)},
		{">6m", string(TimelineMoreThanSixMonths)},
		{"Exploring", string(TimelineExploring)},
	}
	sourceTable = []enumPair{
		{"Website", string(SourceWebsite)},
		{"Referral", string(SourceReferral)},
		{"Walk-in", string(SourceWalkIn)},
		{"Call", string(SourceCall)},
		{"Other", string(SourceOther)},
	}
)

// HumanBHKs returns the accepted human BHK labels.
func HumanBHKs() []string { return humanLabels(bhkTable) }

// HumanTimelines returns the accepted human timeline labels.
func HumanTimelines() []string { return humanLabels(timelineTable) }

// HumanSources returns the accepted human source labels.
func HumanSources() []string { return humanLabels(sourceTable) }

func humanLabels(table []enumPair) []string {
	out := make([]string, len(table))
	for i, p := range table {
		out[i] = p.human
	}
	return out
}

// IsCity reports whether v names a known city.
func IsCity(v string) bool { return contains(Cities, City(v)) }

// IsPropertyType reports whether v names a known property type.
func IsPropertyType(v string) bool { return contains(PropertyTypes, PropertyType(v)) }

// IsStatus reports whether v names a known status.
func IsStatus(v string) bool { return contains(Statuses, Status(v)) }

// IsPurpose reports whether v names a known purpose.
func IsPurpose(v string) bool { return contains(Purposes, Purpose(v)) }

func contains[T comparable](set []T, v T) bool {
	for _, item := range set {
		if item == v {
			return true
		}
	}
	return false
}

// OneOf renders values in the space separated form used by validator `oneof` tags.
// Values containing spaces are quoted.
func OneOf[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		s := string(v)
		if strings.ContainsAny(s, " ") {
			s = "'" + s + "'"
		}
		parts[i] = s
	}
	return strings.Join(parts, " ")
}
