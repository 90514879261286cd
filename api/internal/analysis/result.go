// Package analysis holds the data model shared by the analysis server and its
// clients: the image payload, the typed analysis result, the error taxonomy and
// the normalizer that turns raw provider text into a result.
package analysis

// MediaTypeJPEG is the declared media type of every preprocessed payload.
const MediaTypeJPEG = "image/jpeg"

// ImagePayload is the size-bounded image sent for inference.
type ImagePayload struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
}

// Empty reports whether the payload carries no image bytes.
func (p ImagePayload) Empty() bool { return len(p.Data) == 0 }

// Result is one of ItemizedResult, ParseFailure or EmptyResult.
type Result interface {
	isResult()
}

// Item is a single recognized food. Missing fields stay empty; placeholders
// are applied by Format.
type Item struct {
	Name          string `json:"name"`
	Portion       string `json:"portion"`
	CaloriesRange string `json:"calories_range"`
}

// ItemizedResult is a successfully parsed calorie breakdown with at least one item.
type ItemizedResult struct {
	Items              []Item
	TotalCaloriesRange string
	Confidence         string
}

// ParseFailure carries provider text that could not be read as structured data.
type ParseFailure struct {
	RawText string
}

// EmptyResult is a structured response without items. Hint is optional text
// the provider attached, shown to the user as-is.
type EmptyResult struct {
	Hint string
}

func (ItemizedResult) isResult() {}
func (ParseFailure) isResult()   {}
func (EmptyResult) isResult()    {}
