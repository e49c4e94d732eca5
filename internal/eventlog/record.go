package eventlog

// record is the JSON form of an event, used by BoltStore values and MQTT
// payloads. Field names match the eventdata columns.
type record struct {
	Time        string `json:"time"`
	DeviceID    uint32 `json:"dev_id"`
	DeviceInfo  string `json:"dev_info"`
	Priority    uint8  `json:"priority"`
	Description string `json:"description"`
	RunID       string `json:"run_id,omitempty"`
}

func newRecord(e Event, runID string) record {
	return record{
		Time:        e.Timestamp(),
		DeviceID:    e.DeviceID,
		DeviceInfo:  e.DeviceInfo,
		Priority:    uint8(e.Priority),
		Description: e.Description,
		RunID:       runID,
	}
}

func (r record) event() (Event, error) {
	t, err := parseTimestamp(r.Time)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Time:        t,
		DeviceID:    r.DeviceID,
		DeviceInfo:  r.DeviceInfo,
		Priority:    Priority(r.Priority),
		Description: r.Description,
	}, nil
}
