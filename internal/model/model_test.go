package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseDeviceCode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      DeviceCode
		wantError bool
	}{
		{
			name:  "simple code",
			input: "L1-PUMP-007",
			want:  DeviceCode{Group: "L1", Kind: "PUMP", Serial: "007"},
		},
		{
			name:  "serial keeps extra dashes",
			input: "L2-MOTOR-01-A",
			want:  DeviceCode{Group: "L2", Kind: "MOTOR", Serial: "01-A"},
		},
		{
			name:  "surrounding spaces trimmed",
			input: "  L1-FAN-3 ",
			want:  DeviceCode{Group: "L1", Kind: "FAN", Serial: "3"},
		},
		{name: "too few parts", input: "L1-PUMP", wantError: true},
		{name: "empty part", input: "L1--007", wantError: true},
		{name: "empty", input: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeviceCode(tt.input)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestTextAcceptsNumbers(t *testing.T) {
	var row DeviceRow
	if err := json.Unmarshal([]byte(`{"id":12,"name":"L1-PUMP-007","type":"pump","freq":30}`), &row); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if row.ID != "12" || row.Freq != "30" {
		t.Errorf("expected id=12 freq=30, got id=%s freq=%s", row.ID, row.Freq)
	}

	if err := json.Unmarshal([]byte(`{"id":null,"name":"x","type":"","freq":"7"}`), &row); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if row.ID != "" || row.Freq != "7" {
		t.Errorf("expected empty id and freq=7, got id=%s freq=%s", row.ID, row.Freq)
	}
}

func TestDeviceGroupBlobRoundTrip(t *testing.T) {
	groups := []DeviceGroup{
		{
			Table: "Line 1",
			Devices: DeviceRows{Rows: []DeviceRow{
				{ID: "1", Name: "L1-PUMP-007", Type: "pump", Freq: "30"},
			}},
			History: HistoryRows{Rows: []HistoryRow{
				{DeviceName: "L1-PUMP-007", Date: "10-02-26", Content: "oil change"},
			}},
		},
	}

	data, err := json.Marshal(groups)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var reloaded []DeviceGroup
	if err := json.Unmarshal(data, &reloaded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(groups, reloaded) {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", groups, reloaded)
	}
}

func TestHistoryForSortsDescending(t *testing.T) {
	g := DeviceGroup{
		Table: "Line 1",
		History: HistoryRows{Rows: []HistoryRow{
			{DeviceName: "L1-PUMP-007", Date: "10-02-26", Content: "a"},
			{DeviceName: "L1-FAN-001", Date: "11-02-26", Content: "other device"},
			{DeviceName: "L1-PUMP-007", Date: "bad", Content: "b"},
			{DeviceName: "l1-pump-007", Date: "25-02-26", Content: "c"},
		}},
	}

	rows := g.HistoryFor("L1-PUMP-007")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	wantDates := []string{"25-02-26", "10-02-26", "bad"}
	for i, d := range wantDates {
		if rows[i].Date != d {
			t.Errorf("row %d: expected date %s, got %s", i, d, rows[i].Date)
		}
	}
}

func TestUserIsAdmin(t *testing.T) {
	var nilUser *User
	if nilUser.IsAdmin() {
		t.Error("nil user should not be admin")
	}
	if !(&User{Role: "Admin"}).IsAdmin() {
		t.Error("expected Admin role to be admin")
	}
	if (&User{Role: "tech"}).IsAdmin() {
		t.Error("expected tech role not to be admin")
	}
}
