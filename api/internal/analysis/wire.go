package analysis

import (
	"encoding/json"
	"fmt"
)

// ParseFailureMessage is the error text the server attaches to a ParseFailure.
const ParseFailureMessage = "Failed to parse JSON response"

type itemizedWire struct {
	Items              []Item `json:"items"`
	TotalCaloriesRange string `json:"total_calories_range,omitempty"`
	Confidence         string `json:"confidence,omitempty"`
}

type emptyWire struct {
	Items       []Item `json:"items"`
	RawResponse string `json:"raw_response,omitempty"`
}

type parseFailureWire struct {
	RawResponse string `json:"raw_response"`
	Error       string `json:"error"`
}

// ToWire returns the JSON body the server sends for r.
func ToWire(r Result) any {
	switch v := r.(type) {
	case ItemizedResult:
		return itemizedWire{Items: v.Items, TotalCaloriesRange: v.TotalCaloriesRange, Confidence: v.Confidence}
	case ParseFailure:
		return parseFailureWire{RawResponse: v.RawText, Error: ParseFailureMessage}
	case EmptyResult:
		return emptyWire{Items: []Item{}, RawResponse: v.Hint}
	default:
		return emptyWire{Items: []Item{}}
	}
}

// FromWire decodes a 200 body produced by ToWire. The shape is trusted as is:
// a parse-failure carrier is never re-parsed.
func FromWire(body []byte) (Result, error) {
	var w struct {
		Items              []Item `json:"items"`
		TotalCaloriesRange string `json:"total_calories_range"`
		Confidence         string `json:"confidence"`
		RawResponse        string `json:"raw_response"`
		Error              string `json:"error"`
	}
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, err)
	}
	switch {
	case w.Error == ParseFailureMessage:
		return ParseFailure{RawText: w.RawResponse}, nil
	case len(w.Items) > 0:
		return ItemizedResult{Items: w.Items, TotalCaloriesRange: w.TotalCaloriesRange, Confidence: w.Confidence}, nil
	default:
		return EmptyResult{Hint: w.RawResponse}, nil
	}
}
