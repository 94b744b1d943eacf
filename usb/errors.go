/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Sentinel errors
 */

package usb

import "fmt"

// Sentinel errors raised by the core's synchronous entry points.
// Transfer completion callbacks never return errors; failures seen
// inside a callback fold into a Device's liveness flag instead, per
// the cooperative single-threaded model.
var (
	// ErrNoLibusb is returned by Init when the underlying libusb
	// context could not be created.
	ErrNoLibusb = fmt.Errorf("usb: libusb context unavailable")

	// ErrTooManyFailures is returned by Discover after five
	// consecutive enumeration failures.
	ErrTooManyFailures = fmt.Errorf("usb: too many consecutive enumeration failures")

	// ErrDeviceGone is returned by operations attempted against a
	// Device that has already been disconnected.
	ErrDeviceGone = fmt.Errorf("usb: device is gone")

	// ErrNoInterface is returned when no interface on any configuration
	// matches the multiplexing class/subclass/protocol triple.
	ErrNoInterface = fmt.Errorf("usb: no matching interface found")

	// ErrClaimFailed names a libusb_claim_interface failure after a
	// matching interface and configuration were selected. The
	// initialization pipeline does not return it: it logs the failure
	// and marks the device dead.
	ErrClaimFailed = fmt.Errorf("usb: failed to claim interface")

	// ErrLockIsBusy is returned by the single-instance file lock when
	// another instance already holds it.
	ErrLockIsBusy = fmt.Errorf("usb: lock is held by another process")
)

// ErrCode is libusb's own error enumeration, mirrored 1:1 so callers
// can branch on the underlying cause without depending on cgo types.
type ErrCode int

// Error codes, matching enum libusb_error.
const (
	ErrCodeIO ErrCode = -iota - 1
	ErrCodeInvalidParam
	ErrCodeAccess
	ErrCodeNoDevice
	ErrCodeNotFound
	ErrCodeBusy
	ErrCodeTimeout
	ErrCodeOverflow
	ErrCodePipe
	ErrCodeInterrupted
	ErrCodeNoMem
	ErrCodeNotSupported
	ErrCodeOther
)

func (c ErrCode) String() string {
	switch c {
	case ErrCodeIO:
		return "LIBUSB_ERROR_IO"
	case ErrCodeInvalidParam:
		return "LIBUSB_ERROR_INVALID_PARAM"
	case ErrCodeAccess:
		return "LIBUSB_ERROR_ACCESS"
	case ErrCodeNoDevice:
		return "LIBUSB_ERROR_NO_DEVICE"
	case ErrCodeNotFound:
		return "LIBUSB_ERROR_NOT_FOUND"
	case ErrCodeBusy:
		return "LIBUSB_ERROR_BUSY"
	case ErrCodeTimeout:
		return "LIBUSB_ERROR_TIMEOUT"
	case ErrCodeOverflow:
		return "LIBUSB_ERROR_OVERFLOW"
	case ErrCodePipe:
		return "LIBUSB_ERROR_PIPE"
	case ErrCodeInterrupted:
		return "LIBUSB_ERROR_INTERRUPTED"
	case ErrCodeNoMem:
		return "LIBUSB_ERROR_NO_MEM"
	case ErrCodeNotSupported:
		return "LIBUSB_ERROR_NOT_SUPPORTED"
	default:
		return "LIBUSB_ERROR_OTHER"
	}
}

// Error wraps a libusb return code with the call that produced it.
type Error struct {
	Op   string
	Code ErrCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("usb: %s: %s", e.Op, e.Code)
}

func newError(op string, rc int) *Error {
	code := ErrCode(rc)
	if rc > 0 || rc < int(ErrCodeOther) {
		code = ErrCodeOther
	}
	return &Error{Op: op, Code: code}
}
