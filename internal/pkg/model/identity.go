package model

// Identity is the device identity accumulated from payloads. Each field is
// written at most once: the first non-empty value wins.
type Identity struct {
	SerialNumber    string     `json:"serial_number,omitempty"`
	DeviceSerial    string     `json:"device_serial,omitempty"`
	InfoSerial      string     `json:"info_serial,omitempty"`
	FirmwareVersion string     `json:"firmware_version,omitempty"`
	HardwareVersion string     `json:"hardware_version,omitempty"`
	RuntimeType     *int       `json:"runtime_type,omitempty"`
	ModelName       string     `json:"model_name,omitempty"`
	DeviceType      DeviceType `json:"device_type,omitempty"`
}

// Merge copies every field set in other into id where id has none yet.
// It reports whether id changed.
func (id *Identity) Merge(other Identity) bool {
	changed := false
	setString := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	setString(&id.SerialNumber, other.SerialNumber)
	setString(&id.DeviceSerial, other.DeviceSerial)
	setString(&id.InfoSerial, other.InfoSerial)
	setString(&id.FirmwareVersion, other.FirmwareVersion)
	setString(&id.HardwareVersion, other.HardwareVersion)
	setString(&id.ModelName, other.ModelName)
	if id.RuntimeType == nil && other.RuntimeType != nil {
		rt := *other.RuntimeType
		id.RuntimeType = &rt
		changed = true
	}
	if id.DeviceType == 0 && other.DeviceType != 0 {
		id.DeviceType = other.DeviceType
		changed = true
	}
	return changed
}

// Clone returns a copy that shares no memory with id.
func (id Identity) Clone() Identity {
	if id.RuntimeType != nil {
		rt := *id.RuntimeType
		id.RuntimeType = &rt
	}
	return id
}

// Identifier is the stable name used for sinks: model and serial.
func (id Identity) Identifier() string {
	if id.SerialNumber == "" {
		return id.ModelName
	}
	return id.ModelName + "_" + id.SerialNumber
}
