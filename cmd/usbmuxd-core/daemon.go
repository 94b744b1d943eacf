/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Demonization
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"unicode"
)

// CloseStdInOutErr closes stdin/stdout/stderr, replacing them with
// /dev/null, once the daemon has detached from its controlling
// terminal and switched its logging to PathLogFile.
func CloseStdInOutErr() error {
	nul, err := syscall.Open(os.DevNull, syscall.O_RDONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %q: %s", os.DevNull, err)
	}

	nullfd := int(nul)

	syscall.Dup2(nullfd, syscall.Stdin)
	syscall.Dup2(nullfd, syscall.Stdout)
	syscall.Dup2(nullfd, syscall.Stderr)

	return nil
}

// Daemon re-executes the running binary with "-bg" stripped from its
// arguments, in a new session, and waits only long enough to collect
// whatever it writes to stdout/stderr before its own initialization
// finishes -- the fork-and-check-for-early-errors pattern the
// original relies on to make `-bg` fail loudly if, say, the lock file
// is already held, instead of silently backgrounding a process that
// is about to exit.
func Daemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	rstdout, wstdout, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe(): %s", err)
	}

	rstderr, wstderr, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe(): %s", err)
	}

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return fmt.Errorf("open %q: %s", os.DevNull, err)
	}

	attr := &os.ProcAttr{
		Files: []*os.File{devnull, wstdout, wstderr},
		Sys: &syscall.SysProcAttr{
			Setsid: true,
		},
	}

	args := []string{}
	for _, arg := range os.Args {
		if arg != "-bg" {
			args = append(args, arg)
		}
	}

	proc, err := os.StartProcess(exe, args, attr)
	if err != nil {
		return err
	}

	wstdout.Close()
	wstderr.Close()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	io.Copy(stdout, rstdout)
	io.Copy(stderr, rstderr)

	if stdout.Len() != 0 {
		os.Stdout.Write(stdout.Bytes())
	}

	if stderr.Len() > 0 {
		s := strings.TrimFunc(stderr.String(), unicode.IsSpace)
		proc.Kill()
		return errors.New(s)
	}

	proc.Release()
	return nil
}
