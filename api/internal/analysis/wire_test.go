package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWire_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   Result
		want string
	}{
		{
			name: "itemized",
			in:   Normalize(pizzaJSON),
			want: pizzaJSON,
		},
		{
			name: "empty",
			in:   EmptyResult{},
			want: `{"items":[]}`,
		},
		{
			name: "empty with hint",
			in:   EmptyResult{Hint: "blurry"},
			want: `{"items":[],"raw_response":"blurry"}`,
		},
		{
			name: "parse failure with empty text",
			in:   ParseFailure{},
			want: `{"raw_response":"","error":"Failed to parse JSON response"}`,
		},
		{
			name: "parse failure",
			in:   ParseFailure{RawText: "about 300 kcal"},
			want: `{"raw_response":"about 300 kcal","error":"Failed to parse JSON response"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(ToWire(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			back, err := FromWire(b)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back)
		})
	}
}

func TestFromWire_DoesNotReparseRawResponse(t *testing.T) {
	// A fallback carrier that happens to hold valid JSON stays a ParseFailure.
	body := `{"raw_response":"{\"items\":[{\"name\":\"Rice\"}]}","error":"Failed to parse JSON response"}`
	got, err := FromWire([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, ParseFailure{RawText: `{"items":[{"name":"Rice"}]}`}, got)
}

func TestFromWire_OtherErrorIsNotParseFailure(t *testing.T) {
	got, err := FromWire([]byte(`{"items":[],"raw_response":"blurry","error":"something else"}`))
	require.NoError(t, err)
	assert.Equal(t, EmptyResult{Hint: "blurry"}, got)
}

func TestFromWire_Garbage(t *testing.T) {
	_, err := FromWire([]byte("<html>oops</html>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedResponseFormat)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", fmt.Errorf("analyze: %w", ErrUnauthorized), "Unauthorized"},
		{"transport", &TransportError{Err: errors.New("dial tcp: refused")}, "Could not reach"},
		{"provider with message", &ProviderHTTPError{Status: 500, Details: map[string]any{"error": "quota exceeded"}}, "quota exceeded"},
		{"provider bare", &ProviderHTTPError{Status: 502, Details: map[string]any{}}, "HTTP 502"},
		{"format", ErrUnexpectedResponseFormat, "unexpected format"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, Describe(tt.err), tt.want)
		})
	}
	assert.Empty(t, Describe(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&TransportError{Err: errors.New("eof")}))
	assert.True(t, Retryable(&ProviderHTTPError{Status: http.StatusServiceUnavailable}))
	assert.True(t, Retryable(&ProviderHTTPError{Status: http.StatusTooManyRequests}))
	assert.False(t, Retryable(&ProviderHTTPError{Status: http.StatusBadRequest}))
	assert.False(t, Retryable(ErrMisconfigured))
	assert.False(t, Retryable(ErrUnauthorized))
}

func TestFormat(t *testing.T) {
	t.Run("itemized with placeholders", func(t *testing.T) {
		out := Format(ItemizedResult{
			Items:              []Item{{Name: "Pizza slice", Portion: "1 slice", CaloriesRange: "250-300"}, {}},
			TotalCaloriesRange: "250-300",
			Confidence:         "Medium",
		})
		assert.Contains(t, out, "Pizza slice")
		assert.Contains(t, out, "Unknown food")
		assert.Contains(t, out, "Portion: Not specified")
		assert.Contains(t, out, "Calories: N/A kcal")
		assert.Contains(t, out, "Total Calories: 250-300 kcal")
		assert.Contains(t, out, "Medium Confidence")
	})
	t.Run("unknown confidence", func(t *testing.T) {
		out := Format(ItemizedResult{Items: []Item{{Name: "Tea"}}, Confidence: "moderate"})
		assert.Contains(t, out, "Confidence: moderate")
	})
	t.Run("parse failure", func(t *testing.T) {
		out := Format(ParseFailure{RawText: "roughly 400 kcal"})
		assert.Contains(t, out, "response format was unexpected")
		assert.Contains(t, out, "roughly 400 kcal")
	})
	t.Run("empty", func(t *testing.T) {
		assert.Contains(t, Format(EmptyResult{}), "Try uploading a clearer image")
		assert.Contains(t, Format(EmptyResult{Hint: "only cutlery"}), "only cutlery")
	})
}
