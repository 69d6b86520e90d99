//go:build unix

package espeak

import "golang.org/x/sys/unix"

func pauseProcess(pid int) error {
	return unix.Kill(pid, unix.SIGSTOP)
}

func resumeProcess(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}
