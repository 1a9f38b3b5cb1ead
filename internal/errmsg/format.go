// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Engine operations
	OpEngineLoad   Op = "load decoding engine"
	OpEngineDetect Op = "detect format"
	OpEngineList   Op = "list capabilities"

	// Playback operations
	OpPlaybackStart   Op = "start playback"
	OpPlaybackAdvance Op = "advance playlist"
	OpPlaybackRender  Op = "render audio"
	OpPlaybackSeek    Op = "seek"
	OpPlaybackStop    Op = "stop playback"

	// Output operations
	OpOutputOpen Op = "open audio output"
	OpExport     Op = "export"

	// Library operations
	OpLibraryScan Op = "scan library"

	// Session operations
	OpSessionLoad Op = "load session"
	OpSessionSave Op = "save session"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
