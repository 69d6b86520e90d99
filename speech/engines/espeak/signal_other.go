//go:build !unix

package espeak

import "errors"

var errPauseUnsupported = errors.New("pausing espeak is not supported on this platform")

func pauseProcess(int) error {
	return errPauseUnsupported
}

func resumeProcess(int) error {
	return errPauseUnsupported
}
