// Package domain models city weather observations and the outcome of ingesting them.
//
// # Input
//
// A batch source delivers either an envelope of records, each carrying a
// serialized city query in its body:
//
//	{"Records":[{"body":"{\"city\":\"Monterrey\"}"}, ...]}
//
// or one bare query for direct invocation:
//
//	{"city":"Monterrey"}
//
// Any payload without a JSON array under "Records" is treated as a single
// bare query. See [ParseBatch].
//
// # Provider Payload
//
// Current conditions come from the OpenWeatherMap "current weather" endpoint.
// A usable payload carries a "main" object with a numeric "temp" (Celsius,
// requested with units=metric), a non-empty "weather" array, and the
// provider's canonical "name" for the resolved location:
//
//	{"main":{"temp":24.5},"weather":[{"main":"Clear"}],"name":"Monterrey"}
//
// The provider resolves aliases, so "Monterey" or "Méxíco" may come back under
// a different canonical name. Observations are keyed by that canonical name,
// never by the caller's input.
//
// Error payloads such as {"cod":"404","message":"city not found"} lack both
// blocks and are rejected by [ValidateWeather]. The rejection message embeds
// the compact payload verbatim because log verification downstream matches on
// its content.
//
// # Outcome
//
// Each record ends in exactly one [Outcome], serialized as:
//
//	{"response":"OK","error":null,"body":{"city":"Monterrey","temperature":24.5}}
//	{"response":null,"error":"city is required","body":null}
package domain
