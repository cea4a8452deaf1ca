package consumer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"flexi-posture/internal/posture"
)

// ErrMissingAngle returned when a payload lacks pitch or roll
var ErrMissingAngle = errors.New("sample missing pitch or roll")

// samplePayload wire form published by the watch companion app.
// timestamp is RFC3339 or unix seconds; absent means "now".
type samplePayload struct {
	DeviceID  string          `json:"device_id,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Pitch     *float64        `json:"pitch"`
	Roll      *float64        `json:"roll"`
	Yaw       float64         `json:"yaw"`
}

// DecodeSample parses a JSON sample payload
func DecodeSample(payload []byte, now func() time.Time) (posture.OrientationSample, string, error) {
	var p samplePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return posture.OrientationSample{}, "", fmt.Errorf("failed to unmarshal sample: %w", err)
	}
	if p.Pitch == nil || p.Roll == nil {
		return posture.OrientationSample{}, "", ErrMissingAngle
	}

	ts, err := parseTimestamp(p.Timestamp, now)
	if err != nil {
		return posture.OrientationSample{}, "", err
	}

	return posture.OrientationSample{
		Timestamp: ts,
		Pitch:     *p.Pitch,
		Roll:      *p.Roll,
		Yaw:       p.Yaw,
	}, p.DeviceID, nil
}

func parseTimestamp(raw json.RawMessage, now func() time.Time) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return now(), nil
	}
	if raw[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		return t, nil
	}
	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s: %w", raw, err)
	}
	return unixFloat(secs), nil
}

func unixFloat(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
}

// decodeStreamValues accepts either a JSON document under "data" or flat
// pitch/roll/yaw/timestamp fields.
func decodeStreamValues(values map[string]interface{}, now func() time.Time) (posture.OrientationSample, string, error) {
	if data, ok := values["data"]; ok {
		return DecodeSample([]byte(fmt.Sprint(data)), now)
	}

	pitch, err := floatField(values, "pitch")
	if err != nil {
		return posture.OrientationSample{}, "", err
	}
	roll, err := floatField(values, "roll")
	if err != nil {
		return posture.OrientationSample{}, "", err
	}
	sample := posture.OrientationSample{Pitch: pitch, Roll: roll, Timestamp: now()}

	if _, ok := values["yaw"]; ok {
		if sample.Yaw, err = floatField(values, "yaw"); err != nil {
			return posture.OrientationSample{}, "", err
		}
	}
	if ts, ok := values["timestamp"]; ok {
		s := fmt.Sprint(ts)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			sample.Timestamp = unixFloat(secs)
		} else if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			sample.Timestamp = t
		} else {
			return posture.OrientationSample{}, "", fmt.Errorf("invalid timestamp %q", s)
		}
	}

	deviceID, _ := values["device_id"].(string)
	return sample, deviceID, nil
}

func floatField(values map[string]interface{}, key string) (float64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, ErrMissingAngle
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %v: %w", key, raw, err)
	}
	return v, nil
}

// DeviceFromTopic extracts the device segment of "flexi/<device>/orientation"
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}
