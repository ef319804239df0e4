package flagkit

import "strings"

// User represents the user-specific attributes that targeting rules
// evaluate against. Unlike the reflection-based attribute lookup some
// SDKs use, flagkit asks every attribute through GetAttribute so that
// callers can back a User with a database row, a request context, or a
// plain struct without needing exported fields.
//
// Every attribute value is handed to the evaluator as its string wire
// form; numeric and SemVer comparators each parse that
// string themselves, the same way the system this library is modeled
// on treats all attributes as strings before comparing them.
type User interface {
	// GetIdentifier returns the user's unique key. It's used as the
	// default percentage-bucketing attribute when a setting doesn't
	// specify one explicitly.
	GetIdentifier() string
	// GetAttribute returns the named attribute's string value and
	// whether it was present at all. A rule referencing a missing
	// attribute never matches.
	GetAttribute(name string) (string, bool)
}

// BasicUser is a ready-made User backed by an identifier, a handful of
// common attributes, and an open-ended custom attribute map.
type BasicUser struct {
	Identifier string
	Email      string
	Country    string
	Custom     map[string]string
}

var _ User = (*BasicUser)(nil)

// GetIdentifier implements User.
func (u *BasicUser) GetIdentifier() string {
	if u == nil {
		return ""
	}
	return u.Identifier
}

// GetAttribute implements User. The built-in attribute names
// (Identifier, Email, Country) are matched case-insensitively; Custom
// keys are matched exactly.
func (u *BasicUser) GetAttribute(name string) (string, bool) {
	if u == nil {
		return "", false
	}
	switch strings.ToLower(name) {
	case "identifier":
		return u.Identifier, true
	case "email":
		if u.Email == "" {
			return "", false
		}
		return u.Email, true
	case "country":
		if u.Country == "" {
			return "", false
		}
		return u.Country, true
	default:
		v, ok := u.Custom[name]
		return v, ok
	}
}
