package models

import (
	"encoding/json"
	"time"
)

// PreferenceKey identifies a preference document. An empty AppID scopes the
// document to the user alone.
type PreferenceKey struct {
	UserID string
	AppID  string
}

// IsAppScoped reports whether the key addresses a per-application document
func (k PreferenceKey) IsAppScoped() bool {
	return k.AppID != ""
}

// PreferenceDocument represents a stored preference document
type PreferenceDocument struct {
	// ID is the store's internal identifier and never leaves the process
	ID string `json:"-"`

	UserID      string                 `json:"user_id"`
	AppID       string                 `json:"app_id,omitempty"`
	Preferences map[string]interface{} `json:"preferences"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	CreatedAt   *time.Time             `json:"created_at,omitempty"`
	UpdatedAt   *time.Time             `json:"updated_at,omitempty"`
}

// Key returns the document's lookup key
func (d *PreferenceDocument) Key() PreferenceKey {
	return PreferenceKey{UserID: d.UserID, AppID: d.AppID}
}

// Clone returns a deep copy of the document
func (d *PreferenceDocument) Clone() *PreferenceDocument {
	if d == nil {
		return nil
	}
	out := *d
	out.Preferences = CloneFields(d.Preferences)
	out.Settings = CloneFields(d.Settings)
	if d.CreatedAt != nil {
		t := *d.CreatedAt
		out.CreatedAt = &t
	}
	if d.UpdatedAt != nil {
		t := *d.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}

// NewAppPreferenceDocument builds a per-application document storing body verbatim
func NewAppPreferenceDocument(key PreferenceKey, body map[string]interface{}, now time.Time) *PreferenceDocument {
	if body == nil {
		body = map[string]interface{}{}
	}
	ts := Timestamp(now)
	created := ts
	return &PreferenceDocument{
		UserID:      key.UserID,
		AppID:       key.AppID,
		Preferences: body,
		CreatedAt:   &created,
		UpdatedAt:   &ts,
	}
}

// Timestamp normalizes t to the precision every backend can round-trip
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// CloneFields deep-copies a JSON-compatible object
func CloneFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CloneFields(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	default:
		return val
	}
}

// UserPreferences represents the fixed-shape preferences of a user
type UserPreferences struct {
	Theme                string `json:"theme"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	Language             string `json:"language"`
}

// DefaultUserPreferences returns the values applied to omitted preference fields
func DefaultUserPreferences() UserPreferences {
	return UserPreferences{
		Theme:                "dark",
		NotificationsEnabled: true,
		Language:             "en",
	}
}

// UnmarshalJSON fills omitted fields with their defaults
func (p *UserPreferences) UnmarshalJSON(data []byte) error {
	type plain UserPreferences
	v := plain(DefaultUserPreferences())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = UserPreferences(v)
	return nil
}

// Fields returns the document representation of the preferences
func (p UserPreferences) Fields() map[string]interface{} {
	return map[string]interface{}{
		"theme":                 p.Theme,
		"notifications_enabled": p.NotificationsEnabled,
		"language":              p.Language,
	}
}

// UserSettings represents the fixed-shape settings of a user
type UserSettings struct {
	Timezone string `json:"timezone"`
	Location string `json:"location"`
}

// DefaultUserSettings returns the values applied to omitted settings fields
func DefaultUserSettings() UserSettings {
	return UserSettings{
		Timezone: "UTC",
		Location: "US",
	}
}

// UnmarshalJSON fills omitted fields with their defaults
func (s *UserSettings) UnmarshalJSON(data []byte) error {
	type plain UserSettings
	v := plain(DefaultUserSettings())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = UserSettings(v)
	return nil
}

// Fields returns the document representation of the settings
func (s UserSettings) Fields() map[string]interface{} {
	return map[string]interface{}{
		"timezone": s.Timezone,
		"location": s.Location,
	}
}

// NewUserPreferenceDocument builds a user-scoped fixed-shape document
func NewUserPreferenceDocument(userID string, prefs UserPreferences, settings UserSettings) *PreferenceDocument {
	return &PreferenceDocument{
		UserID:      userID,
		Preferences: prefs.Fields(),
		Settings:    settings.Fields(),
	}
}

// StoreStats describes the backing collection for connection diagnostics
type StoreStats struct {
	Backend       string `json:"-"`
	Database      string `json:"name"`
	Collection    string `json:"collection"`
	DocumentCount int64  `json:"document_count"`
	SizeBytes     int64  `json:"size"`
}
