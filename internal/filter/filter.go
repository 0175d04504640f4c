package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

// Filter types.
const (
	TypeNameContains = "name_contains"
	TypeDeviceGroup  = "device_group"
)

// CurrentVersion is the filter schema version this package writes and accepts.
const CurrentVersion = 1

// Spec is a stored device-filter specification. Filters are persisted as JSON
// on the schedule row and validated here at the boundary, not ad hoc at use
// time. Example: {"version":1,"type":"name_contains","value":"kiosk"}.
//
// Rows written by the old dashboard carry an untagged legacy shape
// {"nameContains":"kiosk"}, which Parse still accepts.
type Spec struct {
	Version int    `json:"version"`
	Type    string `json:"type"`
	Value   string `json:"value"`
}

// Parse validates a serialized filter. It rejects unknown versions and types
// so a bad filter fails here rather than matching the wrong universe of
// devices downstream.
func Parse(raw string) (*Spec, error) {
	var s Spec
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}

	if s.Version == 0 && s.Type == "" {
		// Legacy untagged shape.
		var legacy struct {
			NameContains *string `json:"nameContains"`
		}
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil || legacy.NameContains == nil {
			return nil, fmt.Errorf("filter: unrecognized shape")
		}
		s = Spec{Version: CurrentVersion, Type: TypeNameContains, Value: *legacy.NameContains}
	}

	if s.Version != CurrentVersion {
		return nil, fmt.Errorf("filter: unsupported version %d", s.Version)
	}
	switch s.Type {
	case TypeNameContains, TypeDeviceGroup:
	default:
		return nil, fmt.Errorf("filter: unknown type %q", s.Type)
	}
	return &s, nil
}

// Match returns the devices the spec selects.
func (s *Spec) Match(devices []models.Device) []models.Device {
	switch s.Type {
	case TypeNameContains:
		needle := strings.ToLower(s.Value)
		matched := make([]models.Device, 0, len(devices))
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				matched = append(matched, d)
			}
		}
		return matched
	case TypeDeviceGroup:
		// Group membership needs the MDM's group listing; until that is
		// wired a group filter selects nothing rather than everything.
		return nil
	}
	return nil
}

// MatchingDevices resolves a nullable serialized filter against the device
// list. A nil filter matches all devices. A malformed filter matches nothing:
// fail closed, never push to an unintended set because a filter failed to parse.
func MatchingDevices(raw *string, devices []models.Device) []models.Device {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return devices
	}
	spec, err := Parse(*raw)
	if err != nil {
		return nil
	}
	return spec.Match(devices)
}
