package pnrapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"pnr_tracker/internal/domain/pnr"
)

// rawPayload is the subset of the provider response the tracker reads.
// Every field is optional; the provider has no stable contract.
type rawPayload struct {
	PassengerStatus []rawPassenger `json:"passengerStatus"`
	BoardingPoint   looseString    `json:"boardingPoint"`
	ChartPrepared   looseBool      `json:"chartPrepared"`
	Error           errorField     `json:"error"`
}

type rawPassenger struct {
	CurrentStatus   looseString `json:"currentStatus"`
	Coach           looseString `json:"coach"`
	SeatNumber      looseString `json:"seatNumber"`
	BerthPreference looseString `json:"berthPreference"`
}

// normalize maps the raw payload onto the canonical snapshot.
// Only the first passenger is considered.
func normalize(raw rawPayload) pnr.StatusSnapshot {
	snap := pnr.StatusSnapshot{
		CurrentLocation: string(raw.BoardingPoint),
		ChartStatus:     pnr.ChartStatusFor(bool(raw.ChartPrepared)),
	}
	if len(raw.PassengerStatus) > 0 {
		p := raw.PassengerStatus[0]
		snap.Status = string(p.CurrentStatus)
		snap.Coach = string(p.Coach)
		snap.SeatNumber = string(p.SeatNumber)
		snap.BerthPreference = string(p.BerthPreference)
	}
	return snap
}

// looseString accepts strings, numbers and booleans; null and objects decode to "".
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
	case 't', 'f':
		*s = looseString(data)
	case '{', '[':
		*s = ""
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*s = looseString(n.String())
	}
	return nil
}

// looseBool follows the provider's habit of sending flags as booleans, numbers or strings.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*b = false
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		if parsed, err := strconv.ParseBool(v); err == nil {
			*b = looseBool(parsed)
		} else {
			*b = looseBool(strings.EqualFold(v, "yes") || strings.EqualFold(v, "y"))
		}
	case data[0] == 't' || data[0] == 'f':
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = looseBool(v)
	case data[0] == '{' || data[0] == '[':
		*b = false
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*b = n != 0
	}
	return nil
}

// errorField holds the provider's in-body error in whatever shape it arrives.
type errorField struct {
	message string
	present bool
}

func (e *errorField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*e = errorField{}
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		return nil
	case bytes.Equal(data, []byte("true")):
		*e = errorField{message: "provider reported an error", present: true}
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if v = strings.TrimSpace(v); v != "" {
			*e = errorField{message: v, present: true}
		}
	case data[0] == '{':
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
			*e = errorField{message: obj.Message, present: true}
		} else {
			*e = errorField{message: string(data), present: true}
		}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err == nil && n == 0 {
			return nil
		}
		*e = errorField{message: string(data), present: true}
	}
	return nil
}

// embeddedError returns the provider's in-body error message, if any.
func (raw rawPayload) embeddedError() (string, bool) {
	return raw.Error.message, raw.Error.present
}
