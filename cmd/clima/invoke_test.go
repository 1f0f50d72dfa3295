package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeInput(t *testing.T) {
	t.Cleanup(func() { invokePayload = "" })

	payload, err := invokeInput(nil, []string{"Monterrey"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Monterrey"}`, string(payload))

	payload, err = invokeInput(nil, []string{"Lima", "Namek"})
	require.NoError(t, err)
	queries, err := domain.ParseBatch(payload)
	require.NoError(t, err)
	assert.Equal(t, []domain.CityQuery{{City: "Lima"}, {City: "Namek"}}, queries)

	_, err = invokeInput(nil, nil)
	assert.Error(t, err)
}

func TestInvokeInput_Payload(t *testing.T) {
	t.Cleanup(func() { invokePayload = "" })

	invokePayload = "-"
	payload, err := invokeInput(strings.NewReader(`{"Records":[]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"Records":[]}`, string(payload))

	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"city":"Lima"}`), 0o600))
	invokePayload = path
	payload, err = invokeInput(nil, []string{"ignored"})
	require.NoError(t, err)
	assert.Equal(t, `{"city":"Lima"}`, string(payload))
}
