// Package session is the client-side state machine that sequences credential
// entry, image selection, analysis and result display.
package session

import (
	"calorie-lens/api/internal/analysis"
)

type State int

const (
	Idle State = iota
	AwaitingImage
	ImageReady
	Analyzing
	ResultShown
	ErrorShown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingImage:
		return "AwaitingImage"
	case ImageReady:
		return "ImageReady"
	case Analyzing:
		return "Analyzing"
	case ResultShown:
		return "ResultShown"
	case ErrorShown:
		return "ErrorShown"
	default:
		return "Unknown"
	}
}

// Snapshot is a consistent view of the machine. Result is set only in
// ResultShown and Err only in ErrorShown.
type Snapshot struct {
	State  State
	Result analysis.Result
	Err    error
	// Notice is an inline message, e.g. an unreadable image. It never
	// changes State.
	Notice string
	// Preparing is true while a selected image is being decoded.
	Preparing bool
	// Width and Height describe the prepared image in ImageReady.
	Width, Height int
}

// Message is the user-facing text for ErrorShown.
func (s Snapshot) Message() string {
	if s.State != ErrorShown {
		return ""
	}
	return analysis.Describe(s.Err)
}
