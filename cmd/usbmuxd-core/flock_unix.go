//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * File locking -- UNIX version
 */

package main

import (
	"os"
	"syscall"

	"github.com/WIPERAPP/usbmuxd/usb"
)

// FileLock acquires file lock
func FileLock(file *os.File, exclusive, wait bool) error {
	var how int

	if exclusive {
		how = syscall.LOCK_EX
	} else {
		how = syscall.LOCK_SH
	}

	if !wait {
		how |= syscall.LOCK_NB
	}

	err := syscall.Flock(int(file.Fd()), how)
	if err == syscall.Errno(syscall.EWOULDBLOCK) {
		err = usb.ErrLockIsBusy
	}

	return err
}

// FileUnlock releases file lock
func FileUnlock(file *os.File) error {
	return syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
}
