package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// StripCodeFences removes a leading ```json (or bare ```) marker and a trailing
// ``` marker. Text without fences comes back trimmed but otherwise unchanged.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Normalize turns raw provider text into a Result. It never fails: text that is
// not a JSON object becomes a ParseFailure holding the original, unstripped text.
func Normalize(raw string) Result {
	body := []byte(StripCodeFences(raw))
	if !bytes.HasPrefix(body, []byte("{")) {
		return ParseFailure{RawText: raw}
	}
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return ParseFailure{RawText: raw}
	}
	return doc.result()
}

// document is the loose shape the provider is asked to produce.
type document struct {
	Items              []Item     `json:"items"`
	TotalCaloriesRange flexString `json:"total_calories_range"`
	Confidence         flexString `json:"confidence"`

	// Free text some responses put next to an empty item list.
	RawResponse flexString `json:"raw_response"`
	RawText     flexString `json:"raw_text"`
	Message     flexString `json:"message"`
	Note        flexString `json:"note"`
}

func (d document) result() Result {
	if len(d.Items) == 0 {
		return EmptyResult{Hint: firstNonEmpty(d.RawResponse, d.RawText, d.Message, d.Note)}
	}
	return ItemizedResult{
		Items:              d.Items,
		TotalCaloriesRange: string(d.TotalCaloriesRange),
		Confidence:         string(d.Confidence),
	}
}

// UnmarshalJSON accepts numbers where strings are expected; models often emit
// "calories_range": 250.
func (it *Item) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name          flexString `json:"name"`
		Portion       flexString `json:"portion"`
		CaloriesRange flexString `json:"calories_range"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	it.Name = string(raw.Name)
	it.Portion = string(raw.Portion)
	it.CaloriesRange = string(raw.CaloriesRange)
	return nil
}

// flexString decodes a JSON string, number, bool or null into text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	case bytes.Equal(b, []byte("true")), bytes.Equal(b, []byte("false")):
		*f = flexString(b)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
			return err
		}
		*f = flexString(n.String())
		return nil
	}
}

func firstNonEmpty(vals ...flexString) string {
	for _, v := range vals {
		if v != "" {
			return string(v)
		}
	}
	return ""
}
