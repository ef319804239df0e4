package flagkit

import "encoding/json"

// SettingType identifies the Go type a Setting's value is stored as.
type SettingType int

// The four setting types a flag value can carry.
const (
	BoolSetting SettingType = iota
	StringSetting
	IntSetting
	FloatSetting
)

// RedirectMode describes how a base URL mismatch between the SDK's
// configured data governance and the server's preference should be
// handled.
type RedirectMode int

// Redirect modes, matching the wire document's "r" preference field.
const (
	RedirectNone RedirectMode = iota
	RedirectShould
	RedirectForce
)

// Comparator identifies the targeting-rule comparison operator a
// UserCondition applies. Numbering is fixed by the wire contract.
type Comparator int

// All defined comparators. 18-21 are reserved slots with no
// implemented comparison; encountering one is a validation error, not a
// match.
const (
	OpOneOf Comparator = iota
	OpNotOneOf
	OpContains
	OpNotContains
	OpSemverOneOf
	OpSemverNotOneOf
	OpSemverLess
	OpSemverLessEq
	OpSemverGreater
	OpSemverGreaterEq
	OpNumberEq
	OpNumberNotEq
	OpNumberLess
	OpNumberLessEq
	OpNumberGreater
	OpNumberGreaterEq
	OpSensitiveOneOf
	OpSensitiveNotOneOf
	OpReservedDateBefore
	OpReservedDateAfter
	OpReservedSensitiveEq
	OpReservedSensitiveNotEq
	OpSensitiveStartsWith
	OpSensitiveEndsWith
)

var comparatorText = [...]string{
	"IS ONE OF",
	"IS NOT ONE OF",
	"CONTAINS",
	"DOES NOT CONTAIN",
	"IS ONE OF (SemVer)",
	"IS NOT ONE OF (SemVer)",
	"< (SemVer)",
	"<= (SemVer)",
	"> (SemVer)",
	">= (SemVer)",
	"= (Number)",
	"<> (Number)",
	"< (Number)",
	"<= (Number)",
	"> (Number)",
	">= (Number)",
	"IS ONE OF (Sensitive)",
	"IS NOT ONE OF (Sensitive)",
	"BEFORE (DateTime)",
	"AFTER (DateTime)",
	"EQUALS (Sensitive)",
	"DOES NOT EQUAL (Sensitive)",
	"STARTS WITH (Sensitive)",
	"ENDS WITH (Sensitive)",
}

// String renders the human-readable rule text used in evaluation
// traces, e.g. "IS ONE OF (SemVer)".
func (c Comparator) String() string {
	if c < 0 || int(c) >= len(comparatorText) {
		return "UNKNOWN"
	}
	return comparatorText[c]
}

// IsSensitive reports whether the comparator hashes its operands rather
// than comparing them in the clear.
func (c Comparator) IsSensitive() bool {
	switch c {
	case OpSensitiveOneOf, OpSensitiveNotOneOf, OpReservedSensitiveEq, OpReservedSensitiveNotEq,
		OpSensitiveStartsWith, OpSensitiveEndsWith:
		return true
	}
	return false
}

// IsReserved reports whether the comparator occupies a reserved slot
// (18-21) with no implemented comparison.
func (c Comparator) IsReserved() bool {
	return c == OpReservedDateBefore || c == OpReservedDateAfter ||
		c == OpReservedSensitiveEq || c == OpReservedSensitiveNotEq
}

// SegmentComparator selects whether a SegmentCondition requires
// membership or non-membership in the referenced segment.
type SegmentComparator int

// Segment membership comparators.
const (
	SegmentIsIn SegmentComparator = iota
	SegmentIsNotIn
)

// PrerequisiteComparator selects how a PrerequisiteFlagCondition
// compares the dependency flag's value against the expected one.
type PrerequisiteComparator int

// Prerequisite-flag comparators.
const (
	PrerequisiteEquals PrerequisiteComparator = iota
	PrerequisiteNotEquals
)

// SettingValue is the tagged value container used for flag root values,
// served values, and percentage-option values. Exactly one field is
// meaningful, selected by the owning Setting's Type.
type SettingValue struct {
	BoolValue   *bool    `json:"b,omitempty"`
	StringValue *string  `json:"s,omitempty"`
	IntValue    *int     `json:"i,omitempty"`
	DoubleValue *float64 `json:"d,omitempty"`
}

// Get extracts the value appropriate to typ as an interface{}, or nil if
// the matching field wasn't populated.
func (v *SettingValue) Get(typ SettingType) interface{} {
	if v == nil {
		return nil
	}
	switch typ {
	case BoolSetting:
		if v.BoolValue != nil {
			return *v.BoolValue
		}
	case StringSetting:
		if v.StringValue != nil {
			return *v.StringValue
		}
	case IntSetting:
		if v.IntValue != nil {
			return *v.IntValue
		}
	case FloatSetting:
		if v.DoubleValue != nil {
			return *v.DoubleValue
		}
	}
	return nil
}

// Preferences carries the server-controlled base URL redirect and the
// per-document salt used by sensitive comparators.
type Preferences struct {
	Salt     string       `json:"s,omitempty"`
	URL      string       `json:"u,omitempty"`
	Redirect RedirectMode `json:"r"`
}

// UserCondition compares a single user attribute against a fixed
// comparison value using Comparator.
type UserCondition struct {
	ComparisonAttribute string     `json:"a"`
	Comparator          Comparator `json:"c"`
	StringValue         *string    `json:"s,omitempty"`
	DoubleValue         *float64   `json:"d,omitempty"`
	StringListValue     []string   `json:"l,omitempty"`
}

// SegmentCondition matches against named reusable rule groups, by
// positional index into the document's Segments slice.
type SegmentCondition struct {
	SegmentIndex int               `json:"s"`
	Comparator   SegmentComparator `json:"c"`
}

// PrerequisiteFlagCondition matches the evaluated value of another flag
// in the same document.
type PrerequisiteFlagCondition struct {
	FlagKey    string                 `json:"f"`
	Comparator PrerequisiteComparator `json:"c"`
	Value      *SettingValue          `json:"v"`
}

// Condition is a tagged union: exactly one of UserCondition,
// SegmentCondition, or PrerequisiteFlagCondition is populated.
type Condition struct {
	UserCondition             *UserCondition             `json:"u,omitempty"`
	SegmentCondition          *SegmentCondition          `json:"s,omitempty"`
	PrerequisiteFlagCondition *PrerequisiteFlagCondition `json:"d,omitempty"`
}

// Segment is a named, reusable set of user conditions referenced by
// SegmentCondition.
type Segment struct {
	Name       string           `json:"n"`
	Conditions []*UserCondition `json:"r"`
}

// ServedValue pairs a SettingValue with its variation ID, the shape
// returned when a TargetingRule matches outright (no percentage split).
type ServedValue struct {
	Value       *SettingValue `json:"v"`
	VariationID string        `json:"i,omitempty"`
}

// PercentageOption is one slice of a percentage-based rollout.
type PercentageOption struct {
	Value       *SettingValue `json:"v"`
	Percentage  int64         `json:"p"`
	VariationID string        `json:"i,omitempty"`
}

// TargetingRule is an AND of Conditions that, if all match, yields
// either a ServedValue outright or a further percentage-based split.
type TargetingRule struct {
	Conditions        []*Condition        `json:"c"`
	ServedValue       *ServedValue        `json:"s,omitempty"`
	PercentageOptions []*PercentageOption `json:"p,omitempty"`
}

// Setting is a single flag's full definition: its root value, type,
// targeting rules, and root-level percentage options.
type Setting struct {
	Type                SettingType         `json:"t"`
	Value               *SettingValue       `json:"v"`
	VariationID         string              `json:"i,omitempty"`
	PercentageAttribute string              `json:"a,omitempty"`
	TargetingRules      []*TargetingRule    `json:"r,omitempty"`
	PercentageOptions   []*PercentageOption `json:"p,omitempty"`
}

// Document is the parsed form of a fetched config.json body.
type Document struct {
	Preferences *Preferences        `json:"p,omitempty"`
	Segments    []*Segment          `json:"s,omitempty"`
	Flags       map[string]*Setting `json:"f"`
}

// ParseDocument unmarshals a raw config.json body into a Document.
func ParseDocument(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Flags == nil {
		doc.Flags = map[string]*Setting{}
	}
	return &doc, nil
}

// salt returns the document-level salt used by sensitive comparators,
// or the empty string if the document carries no preferences.
func (d *Document) salt() string {
	if d == nil || d.Preferences == nil {
		return ""
	}
	return d.Preferences.Salt
}

// SimplifiedFlags returns a flat map of flag key to its root value,
// ignoring targeting rules and percentage options - a quick overview
// view, not a substitute for the typed evaluation methods.
func (d *Document) SimplifiedFlags() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Flags))
	for key, setting := range d.Flags {
		out[key] = setting.Value.Get(setting.Type)
	}
	return out
}
