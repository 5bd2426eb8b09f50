package model

import "time"

type RegisterDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SwVersion    string   `json:"sw_version,omitempty"`
	HwVersion    string   `json:"hw_version,omitempty"`
}

type RegisterMessage struct {
	Tilda       string         `json:"~"`
	Name        string         `json:"name"`
	ID          string         `json:"unique_id"`
	StateTopic  string         `json:"state_topic"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	StateClass  string         `json:"state_class,omitempty"`
	ValueTmpl   string         `json:"value_template,omitempty"`
	Device      RegisterDevice `json:"device"`
}

type Device struct {
	ID              string `json:"id"`
	Model           string `json:"model"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	HardwareVersion string `json:"hardware_version,omitempty"`
}

// DeviceFromIdentity builds the sink-facing device description.
func DeviceFromIdentity(id Identity) Device {
	return Device{
		ID:              id.Identifier(),
		Model:           id.ModelName,
		SerialNumber:    id.SerialNumber,
		FirmwareVersion: id.FirmwareVersion,
		HardwareVersion: id.HardwareVersion,
	}
}

// Record is one decoded value handed to the sinks.
type Record struct {
	Identifier  string    `json:"identifier"`
	Key         string    `json:"key"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Value       Value     `json:"value"`
	Label       string    `json:"label,omitempty"`
	Unit        string    `json:"unit_of_measurement"`
	DeviceClass string    `json:"device_class,omitempty"`
	StateClass  string    `json:"state_class,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
