package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CityQuery is one request to ingest the current weather for a city.
type CityQuery struct {
	City string `json:"city" validate:"required"`
}

// Validate reports an InputError wrapping ErrCityRequired when the city is empty.
func (q CityQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &InputError{Err: ErrCityRequired}
		}
		return &InputError{Err: err}
	}
	return nil
}

// envelope is the queue delivery shape. Records stays raw so a non-array value
// can fall through to direct-invocation mode.
type envelope struct {
	Records json.RawMessage `json:"Records"`
}

type record struct {
	Body *string `json:"body"`
}

// ParseBatch splits a batch payload into city queries.
//
// A payload whose "Records" field is a JSON array is a queue batch and each
// element's body is decoded as a CityQuery. Anything else is one bare query.
// A record body or bare payload that is valid JSON but not a query object
// yields an empty CityQuery, so that record fails input validation and the
// rest of the batch still runs. Only bodies that are not JSON fail the batch.
func ParseBatch(payload []byte) ([]CityQuery, error) {
	if !json.Valid(payload) {
		return nil, errors.New("batch payload is not valid JSON")
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil && isJSONArray(env.Records) {
		var records []record
		if err := json.Unmarshal(env.Records, &records); err != nil {
			return nil, fmt.Errorf("decode batch records: %w", err)
		}
		queries := make([]CityQuery, 0, len(records))
		for i, r := range records {
			if r.Body == nil {
				return nil, fmt.Errorf("record %d: missing body", i)
			}
			body := []byte(*r.Body)
			if !json.Valid(body) {
				return nil, fmt.Errorf("record %d: body is not valid JSON", i)
			}
			var q CityQuery
			if err := json.Unmarshal(body, &q); err != nil {
				q = CityQuery{}
			}
			queries = append(queries, q)
		}
		return queries, nil
	}

	var q CityQuery
	if err := json.Unmarshal(payload, &q); err != nil {
		return []CityQuery{{}}, nil
	}
	return []CityQuery{q}, nil
}

// EncodeBatch wraps queries in the queue envelope understood by ParseBatch.
func EncodeBatch(queries ...CityQuery) ([]byte, error) {
	type outRecord struct {
		Body string `json:"body"`
	}
	out := struct {
		Records []outRecord `json:"Records"`
	}{Records: make([]outRecord, 0, len(queries))}

	for _, q := range queries {
		body, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("encode city query: %w", err)
		}
		out.Records = append(out.Records, outRecord{Body: string(body)})
	}
	return json.Marshal(out)
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
