package filter

import (
	"testing"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

func strPtr(s string) *string { return &s }

var fleet = []models.Device{
	{ID: 1, Name: "Lobby Kiosk"},
	{ID: 2, Name: "warehouse-ipad-03"},
	{ID: 3, Name: "KIOSK-backroom"},
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		want    Spec
	}{
		{
			name: "current shape",
			raw:  `{"version":1,"type":"name_contains","value":"kiosk"}`,
			want: Spec{Version: 1, Type: TypeNameContains, Value: "kiosk"},
		},
		{
			name: "legacy untagged shape",
			raw:  `{"nameContains":"kiosk"}`,
			want: Spec{Version: 1, Type: TypeNameContains, Value: "kiosk"},
		},
		{
			name: "device group",
			raw:  `{"version":1,"type":"device_group","value":"12"}`,
			want: Spec{Version: 1, Type: TypeDeviceGroup, Value: "12"},
		},
		{name: "invalid json", raw: `{"version":`, wantErr: true},
		{name: "unknown type", raw: `{"version":1,"type":"os_version","value":"17"}`, wantErr: true},
		{name: "unsupported version", raw: `{"version":2,"type":"name_contains","value":"x"}`, wantErr: true},
		{name: "unrecognized shape", raw: `{"foo":"bar"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestMatchNameContainsCaseInsensitive(t *testing.T) {
	spec := &Spec{Version: 1, Type: TypeNameContains, Value: "KiOsK"}
	matched := spec.Match(fleet)
	if len(matched) != 2 {
		t.Fatalf("got %d devices, want 2", len(matched))
	}
	if matched[0].ID != 1 || matched[1].ID != 3 {
		t.Errorf("matched wrong devices: %+v", matched)
	}
}

func TestMatchDeviceGroupSelectsNothing(t *testing.T) {
	spec := &Spec{Version: 1, Type: TypeDeviceGroup, Value: "12"}
	if matched := spec.Match(fleet); len(matched) != 0 {
		t.Errorf("group filter should select nothing, got %d", len(matched))
	}
}

func TestMatchingDevices(t *testing.T) {
	t.Run("nil filter matches all", func(t *testing.T) {
		if got := MatchingDevices(nil, fleet); len(got) != len(fleet) {
			t.Errorf("got %d, want %d", len(got), len(fleet))
		}
	})

	t.Run("empty string matches all", func(t *testing.T) {
		if got := MatchingDevices(strPtr("  "), fleet); len(got) != len(fleet) {
			t.Errorf("got %d, want %d", len(got), len(fleet))
		}
	})

	t.Run("malformed filter matches nothing", func(t *testing.T) {
		if got := MatchingDevices(strPtr(`{"version":`), fleet); len(got) != 0 {
			t.Errorf("malformed filter must fail closed, got %d devices", len(got))
		}
	})

	t.Run("valid filter narrows", func(t *testing.T) {
		raw := strPtr(`{"version":1,"type":"name_contains","value":"warehouse"}`)
		got := MatchingDevices(raw, fleet)
		if len(got) != 1 || got[0].ID != 2 {
			t.Errorf("got %+v", got)
		}
	})
}
