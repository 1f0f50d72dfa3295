package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// RawWeatherResponse is a provider payload as received. Body holds compact
// JSON with the provider's key order preserved.
type RawWeatherResponse struct {
	StatusCode int
	Body       []byte
}

// NewRawWeatherResponse re-serializes body in the canonical compact form:
// keys keep their order, string escapes are decoded except where JSON
// requires them, and numbers use their shortest form ("1.0" becomes "1").
// Duplicate keys are kept as sent.
func NewRawWeatherResponse(statusCode int, body []byte) (RawWeatherResponse, error) {
	if !json.Valid(body) {
		return RawWeatherResponse{}, errors.New("invalid JSON")
	}
	norm, err := normalizeJSON(body)
	if err != nil {
		return RawWeatherResponse{}, err
	}
	return RawWeatherResponse{StatusCode: statusCode, Body: norm}, nil
}

type jsonFrame struct {
	object bool
	n      int
}

func normalizeJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var buf bytes.Buffer
	var stack []jsonFrame
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}

		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			stack = stack[:len(stack)-1]
			buf.WriteByte(byte(d))
			continue
		}
		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			switch {
			case top.object && top.n%2 == 1:
				buf.WriteByte(':')
			case top.n > 0:
				buf.WriteByte(',')
			}
			top.n++
		}

		switch v := tok.(type) {
		case json.Delim:
			buf.WriteByte(byte(v))
			stack = append(stack, jsonFrame{object: v == '{'})
		case string:
			writeQuoted(&buf, v)
		case json.Number:
			buf.WriteString(formatNumber(v))
		case bool:
			buf.WriteString(strconv.FormatBool(v))
		case nil:
			buf.WriteString("null")
		}
	}
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// formatNumber renders n the way ECMAScript prints a double: plain digits
// from 1e-6 up to 1e21, exponent notation outside that. Values that overflow
// a double print as null.
func formatNumber(n json.Number) string {
	f, _ := strconv.ParseFloat(string(n), 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null"
	}
	if f == 0 {
		return "0"
	}
	sign := ""
	if f < 0 {
		sign, f = "-", -f
	}

	mant, expPart, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	k, point := len(digits), exp+1

	switch {
	case k <= point && point <= 21:
		return sign + digits + strings.Repeat("0", point-k)
	case 0 < point && point <= 21:
		return sign + digits[:point] + "." + digits[point:]
	case -6 < point && point <= 0:
		return sign + "0." + strings.Repeat("0", -point) + digits
	}

	out := digits[:1]
	if k > 1 {
		out += "." + digits[1:]
	}
	if exp >= 0 {
		return sign + out + "e+" + strconv.Itoa(exp)
	}
	return sign + out + "e" + strconv.Itoa(exp)
}

// String returns the payload as compact JSON.
func (r RawWeatherResponse) String() string { return string(r.Body) }

// Reading is the validated subset of a provider payload.
type Reading struct {
	CityName    string
	Temperature float64
}

// ValidateWeather extracts the canonical city name and temperature.
//
// The payload is well-formed iff "main" is an object with a numeric "temp"
// and "weather" is a non-empty array. Anything else, including provider error
// payloads, is a ShapeError carrying the payload. An absent "name" leaves
// CityName empty; callers fall back to the queried city.
func ValidateWeather(raw RawWeatherResponse) (Reading, error) {
	shapeErr := &ShapeError{Payload: raw.String()}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw.Body, &fields); err != nil {
		return Reading{}, shapeErr
	}

	var current map[string]json.RawMessage
	if err := json.Unmarshal(fields["main"], &current); err != nil || current == nil {
		return Reading{}, shapeErr
	}
	var temp *float64
	if err := json.Unmarshal(current["temp"], &temp); err != nil || temp == nil {
		return Reading{}, shapeErr
	}

	var conditions []json.RawMessage
	if err := json.Unmarshal(fields["weather"], &conditions); err != nil || len(conditions) == 0 {
		return Reading{}, shapeErr
	}

	var name string
	_ = json.Unmarshal(fields["name"], &name)

	return Reading{CityName: name, Temperature: *temp}, nil
}
