package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Observation is the latest known temperature for a city.
type Observation struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	ObservedAt  time.Time `json:"observed_at"`
}

// CityTemperature is the body of a successful outcome.
type CityTemperature struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
}

// Outcome is the terminal result of processing one record. Exactly one of
// Body and Reason is meaningful, selected by Err.
type Outcome struct {
	Body CityTemperature
	Err  error
}

// Success builds a successful outcome.
func Success(city string, temperature float64) Outcome {
	return Outcome{Body: CityTemperature{City: city, Temperature: temperature}}
}

// Failure builds a failed outcome from err.
func Failure(err error) Outcome {
	return Outcome{Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Err == nil }

// Reason is the failure message, empty on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type outcomeJSON struct {
	Response *string          `json:"response"`
	Error    *string          `json:"error"`
	Body     *CityTemperature `json:"body"`
}

// MarshalJSON emits {response, error, body} with exactly one side non-null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	var out outcomeJSON
	if o.OK() {
		ok := "OK"
		body := o.Body
		out.Response = &ok
		out.Body = &body
	} else {
		reason := o.Reason()
		out.Error = &reason
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON. A decoded
// failure carries its reason as a plain error.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var in outcomeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.Error != nil:
		*o = Failure(errors.New(*in.Error))
	case in.Body != nil:
		*o = Success(in.Body.City, in.Body.Temperature)
	default:
		return errors.New("outcome has neither body nor error")
	}
	return nil
}
