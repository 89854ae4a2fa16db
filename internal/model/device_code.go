package model

import (
	"fmt"
	"strings"
)

// DeviceCode is the structured form of a GROUP-KIND-SERIAL device name.
type DeviceCode struct {
	Group  string
	Kind   string
	Serial string
}

// String joins the parts back into a device name.
func (c DeviceCode) String() string {
	return c.Group + "-" + c.Kind + "-" + c.Serial
}

// ParseDeviceCode splits a device name into group, kind and serial. The serial
// keeps any further dashes.
func ParseDeviceCode(name string) (DeviceCode, error) {
	parts := strings.SplitN(strings.TrimSpace(name), "-", 3)
	if len(parts) != 3 {
		return DeviceCode{}, fmt.Errorf("device name '%s' must be in format 'GROUP-KIND-SERIAL'", name)
	}
	for _, p := range parts {
		if p == "" {
			return DeviceCode{}, fmt.Errorf("device name '%s' must be in format 'GROUP-KIND-SERIAL'", name)
		}
	}
	return DeviceCode{Group: parts[0], Kind: parts[1], Serial: parts[2]}, nil
}
