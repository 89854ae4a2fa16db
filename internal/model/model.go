// Package model defines the records exchanged with the maintenance backend and
// persisted on the device.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Text is a string field that also accepts JSON numbers and booleans, since
// spreadsheet-backed rows carry ids and frequencies in either form.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*t = Text(data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("text field: %w", err)
		}
		*t = Text(n.String())
	}
	return nil
}

// String returns the plain string.
func (t Text) String() string { return string(t) }

// User is the authenticated account. It is replaced wholesale on login and
// refresh.
type User struct {
	UserID   Text   `json:"userId"`
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Code     string `json:"code,omitempty"`
	Role     string `json:"role,omitempty"`
	Active   *bool  `json:"active,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, "admin")
}

// DeviceRow is one piece of equipment.
type DeviceRow struct {
	ID   Text   `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Freq Text   `json:"freq"`
}

// Code parses the composite device name.
func (d DeviceRow) Code() (DeviceCode, error) {
	return ParseDeviceCode(d.Name)
}

// HistoryRow is one maintenance log entry. Date is dd-MM-yy.
type HistoryRow struct {
	DeviceName string `json:"deviceName"`
	Date       string `json:"date"`
	Content    string `json:"content"`
}

// DeviceRows wraps the device list as the backend ships it.
type DeviceRows struct {
	Rows []DeviceRow `json:"rows"`
}

// HistoryRows wraps the history list as the backend ships it.
type HistoryRows struct {
	Rows []HistoryRow `json:"rows"`
}

// DeviceGroup is a named collection of devices and their maintenance log. Table
// is the natural key.
type DeviceGroup struct {
	Table   string      `json:"table"`
	Devices DeviceRows  `json:"devices"`
	History HistoryRows `json:"history"`
}

// FindDevice returns the device with the given name, ignoring case.
func (g *DeviceGroup) FindDevice(name string) (DeviceRow, bool) {
	for _, d := range g.Devices.Rows {
		if strings.EqualFold(strings.TrimSpace(d.Name), strings.TrimSpace(name)) {
			return d, true
		}
	}
	return DeviceRow{}, false
}

// HistoryFor returns the history rows of one device in descending date order.
func (g *DeviceGroup) HistoryFor(deviceName string) []HistoryRow {
	var rows []HistoryRow
	for _, h := range g.History.Rows {
		if strings.EqualFold(strings.TrimSpace(h.DeviceName), strings.TrimSpace(deviceName)) {
			rows = append(rows, h)
		}
	}
	SortHistoryDesc(rows)
	return rows
}
