// Command genmock captures live OpenWeatherMap responses for a list of cities
// and writes them as pipeline test fixtures. Expected outcomes are computed
// with the domain validator, so the fixtures match real pipeline behavior.
//
// Usage:
//
//	OPENWEATHER_API_KEY=... go run ./cmd/genmock \
//	  -cities "Monterrey,Monterréy,Moscu,Sao Paulo,Namek" \
//	  -out data/mock/openweather_responses.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/adapter/openweather"
	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/couchcryptid/clima-ingest-service/internal/observability"
)

type fixture struct {
	Query             string          `json:"query"`
	Status            int             `json:"status"`
	Response          json.RawMessage `json:"response"`
	ExpectCity        string          `json:"expect_city,omitempty"`
	ExpectTemperature *float64        `json:"expect_temperature,omitempty"`
	ExpectError       string          `json:"expect_error,omitempty"`
}

func main() {
	cities := flag.String("cities", "Monterrey,Namek", "comma-separated city queries")
	out := flag.String("out", "data/mock/openweather_responses.json", "fixture output path")
	baseURL := flag.String("base-url", "https://api.openweathermap.org/data/2.5/weather", "provider endpoint")
	flag.Parse()

	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENWEATHER_API_KEY is required")
	}

	client := openweather.NewClient(apiKey, *baseURL, 10*time.Second,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	var fixtures []fixture
	for _, city := range strings.Split(*cities, ",") {
		city = strings.TrimSpace(city)
		if city == "" {
			continue
		}
		f, err := capture(context.Background(), client, city)
		if err != nil {
			log.Fatalf("%s: %v", city, err)
		}
		fixtures = append(fixtures, f)
	}

	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %d fixtures to %s\n", len(fixtures), *out)
}

func capture(ctx context.Context, client *openweather.Client, city string) (fixture, error) {
	raw, err := client.Fetch(ctx, city)
	if err != nil {
		return fixture{}, err
	}
	f := fixture{Query: city, Status: raw.StatusCode, Response: raw.Body}

	reading, err := domain.ValidateWeather(raw)
	var shapeErr *domain.ShapeError
	switch {
	case errors.As(err, &shapeErr):
		f.ExpectError = shapeErr.Error()
	case err != nil:
		return fixture{}, err
	default:
		f.ExpectCity = reading.CityName
		if f.ExpectCity == "" {
			f.ExpectCity = city
		}
		f.ExpectTemperature = &reading.Temperature
	}
	return f, nil
}
