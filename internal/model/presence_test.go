package model

import (
	"encoding/json"
	"testing"
)

func TestCanonicalPresenceStatus(t *testing.T) {
	tests := []struct {
		in   string
		want PresenceStatus
	}{
		{"online", PresenceOnline},
		{"idle", PresenceIdle},
		{"dnd", PresenceDND},
		{"offline", PresenceOffline},
		{"invisible", PresenceOffline},
		{"", PresenceOffline},
		{"ONLINE", PresenceOffline},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CanonicalPresenceStatus(tt.in); got != tt.want {
				t.Errorf("CanonicalPresenceStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOfflineSnapshot_JSONHasNullActivity(t *testing.T) {
	data, err := json.Marshal(OfflineSnapshot("Fractal", "frac"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := `{"username":"Fractal","id":"frac","status":"offline","activity":null}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestPresenceSnapshot_Validate(t *testing.T) {
	name := func(n string) *Activity { return &Activity{Name: n, ElapsedTime: "Active now"} }
	tests := []struct {
		name    string
		snap    *PresenceSnapshot
		wantErr bool
	}{
		{"nil", nil, true},
		{"offline", OfflineSnapshot("Fractal", "frac"), false},
		{"online with activity", &PresenceSnapshot{Username: "Fractal", Status: PresenceOnline, Activity: name("Clicking")}, false},
		{"empty status", &PresenceSnapshot{Username: "Fractal"}, true},
		{"unknown status", &PresenceSnapshot{Username: "Fractal", Status: "invisible"}, true},
		{"activity without name", &PresenceSnapshot{Status: PresenceIdle, Activity: name("")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
