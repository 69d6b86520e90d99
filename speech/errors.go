package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnsupported means no speech capability exists on this system.
	ErrEngineUnsupported = errors.New("text-to-speech is not supported on this system")
	// ErrStartTimeout means the engine accepted chunk 0 but never started it.
	ErrStartTimeout = errors.New("text-to-speech failed to start, check your speech engine settings and try again")
	// ErrEmptyContent means there is nothing to narrate.
	ErrEmptyContent = errors.New("nothing to read")
	// ErrClosed means the controller was closed.
	ErrClosed = errors.New("speech controller is closed")
)

// ErrorCode is the reason an engine gives for an utterance error.
type ErrorCode string

const (
	CodeInterrupted      ErrorCode = "interrupted"
	CodeCanceled         ErrorCode = "canceled"
	CodeNetwork          ErrorCode = "network"
	CodeSynthesisFailed  ErrorCode = "synthesis-failed"
	CodeAudioBusy        ErrorCode = "audio-busy"
	CodeAudioHardware    ErrorCode = "audio-hardware"
	CodeLanguageMissing  ErrorCode = "language-unavailable"
	CodeVoiceUnavailable ErrorCode = "voice-unavailable"
	CodeTextTooLong      ErrorCode = "text-too-long"
	CodeInvalidArgument  ErrorCode = "invalid-argument"
)

// IsRecoverable reports whether code is a side effect of the controller's
// own cancellation and must not reach the user.
func IsRecoverable(code ErrorCode) bool {
	return code == CodeInterrupted || code == CodeCanceled
}

// SynthesisError is an unrecoverable engine failure.
type SynthesisError struct {
	Code ErrorCode
	Err  error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech error: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("speech error: %s", e.Code)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Notice is a user-visible message raised by the controller.
type Notice struct {
	Err error
}

// Message returns the text shown to the user.
func (n Notice) Message() string {
	if n.Err == nil {
		return ""
	}
	return n.Err.Error()
}
