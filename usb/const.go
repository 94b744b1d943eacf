/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Protocol and descriptor constants
 */

package usb

import "time"

// Apple vendor ID and the product ID ranges this core looks for.
// Mirrors VID_APPLE / PID_APPLE_T2_COPROCESSOR / PID_APPLE_SILICON_*
// / PID_RANGE_* from the original usb.c.
const (
	VendorApple = 0x05ac

	ProductT2Coprocessor = 0x8600

	ProductSiliconRestoreLow = 0x1281
	ProductSiliconRestoreMax = 0x1292

	ProductRangeLow = 0x12a0
	ProductRangeMax = 0x12af
)

// Interface class/subclass/protocol triple identifying the
// multiplexing interface across all known device modes.
const (
	InterfaceClass    = 0xfe
	InterfaceSubClass = 0xf1
	InterfaceProtocol = 0x02
)

// Vendor-specific control requests understood by the device side of
// the multiplexing protocol.
const (
	vendorSpecificGetMode byte = 0x45
	vendorSpecificSetMode byte = 0x52
)

// Mode numbers, as guessed from bNumConfigurations / interface
// inspection. 0 means "undetermined".
const (
	ModeUndetermined = 0
	ModeInitial      = 1
	ModeValeria      = 2
	ModeCDCNCM       = 3
	ModeUSBEthCDCNCM = 4
	ModeCDCNCMDirect = 5
)

// DevicePollInterval is the fallback enumeration period used when
// hotplug notifications are unavailable, matching DEVICE_POLL_TIME.
const DevicePollInterval = 1000 * time.Millisecond

// NumRxLoops is the default number of parallel inbound bulk transfers
// kept in flight per device, matching NUM_RX_LOOPS.
const NumRxLoops = 3

// ControlTimeout bounds every control transfer issued during mode
// negotiation and initialization.
const ControlTimeout = 1000 * time.Millisecond

// DisconnectCancelBudget bounds how long disconnect will wait for
// cancelled transfers to report back before forcing cleanup.
const DisconnectCancelBudget = 100 * time.Millisecond

// disconnectStepInterval is the slice size of each bounded-wait
// dispatch during disconnect.
const disconnectStepInterval = time.Millisecond

// maxEnumerationFailures is the number of consecutive enumeration
// failures tolerated before Discover surfaces a fatal error.
const maxEnumerationFailures = 5

// defaultMaxPacketSize is used when the device's max packet size for
// the OUT endpoint cannot be determined.
const defaultMaxPacketSize = 64

// controlSetupSize is sizeof(struct libusb_control_setup) -- always
// 8 bytes per the USB control transfer wire format.
const controlSetupSize = 8
