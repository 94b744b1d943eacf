/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Device Record
 */

package usb

import "sync"

// location packs bus and address into the single integer the upper
// layer and the diagnostic CLI use to name a device, matching
// usb_get_location()'s `bus << 16 | address`.
func location(bus, address uint8) uint32 {
	return uint32(bus)<<16 | uint32(address)
}

// Device is the core's record for one physical attachment: one Device
// per (bus, address) pair for as long as the underlying libusb device
// handle is open. Fields are written only from the event pump
// goroutine. mu guards the handle, liveness, endpoint, speed and
// serial fields, so the getters that read those under mu may be
// called from other goroutines; Mode, Bus and Address read without it.
type Device struct {
	mu sync.Mutex

	bus     uint8
	address uint8

	vendorID  uint16
	productID uint16

	handle cHandlePtr
	cdev   cDevicePtr

	mode int

	interfaceNum int
	epOut        uint8
	epIn         uint8
	maxPacketOut int

	speedBitsPerSec uint64

	serial string
	langID uint16

	// alive is cleared the instant the device is known to be gone
	// (hotplug LEFT, a fatal transfer error, an enumeration miss) but
	// the record is not freed until the reap sweep runs, per the
	// single-threaded teardown model: nothing may free a device from
	// inside a callback that belongs to that same device.
	alive bool

	// initialized is set once GetLangID/GetSerial/claim have all
	// completed and the upper layer has been told the device arrived.
	initialized bool

	rx *transferPool
	tx *transferPool

	core *Core
}

// Bus returns the USB bus number this device is attached to.
func (d *Device) Bus() uint8 { return d.bus }

// Address returns the USB device address on its bus.
func (d *Device) Address() uint8 { return d.address }

// Location returns bus and address packed into one integer, matching
// usb_get_location().
func (d *Device) Location() uint32 { return location(d.bus, d.address) }

// ProductID returns the device's USB product ID, or 0 once the
// device's handle is gone, matching usb_get_pid()'s zero-on-teardown
// behavior.
func (d *Device) ProductID() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == nil {
		return 0
	}
	return d.productID
}

// Serial returns the device's serial number string, or "" once the
// device's handle is gone, matching usb_get_serial().
func (d *Device) Serial() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == nil {
		return ""
	}
	return d.serial
}

// Speed returns the device's negotiated link speed in bits per
// second, or 0 once the device's handle is gone, matching
// usb_get_speed().
func (d *Device) Speed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == nil {
		return 0
	}
	return d.speedBitsPerSec
}

// Mode returns the mode this device was found in (or switched into).
func (d *Device) Mode() int { return d.mode }

// Alive reports whether the device is still considered present. Once
// false, the next reap sweep cancels its transfers and frees it,
// unless a polling pass re-asserts it first.
func (d *Device) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive
}

// markDead clears the liveness flag. Safe to call from a callback: it
// never frees anything and never notifies the upper layer, it only
// marks the record for the next reap sweep. The DeviceRemoved
// notification fires later, from finalizeDisconnect, once the device
// is actually being torn down -- markDead alone doesn't mean gone for
// good, since a polling pass marks everything dead before reasserting
// aliveness for whatever is still attached.
func (d *Device) markDead() {
	d.mu.Lock()
	d.alive = false
	d.mu.Unlock()
}

// reformatSerial mirrors get_serial_callback's cosmetic touch-up: a
// 24 character serial gets a hyphen inserted at offset 8, turning
// e.g. "AAAAAAAABBBBCCCCCCCCCCCC" into "AAAAAAAA-BBBBCCCCCCCCCCCC".
// Every other length is left untouched.
func reformatSerial(s string) string {
	if len(s) != 24 {
		return s
	}
	return s[:8] + "-" + s[8:]
}

// speedBitsPerSecond converts a libusb speed class into bits per
// second, matching the constants usb_get_speed() reports.
func speedBitsPerSecond(class int) uint64 {
	switch class {
	case speedLow:
		return 1500000
	case speedFull:
		return 12000000
	case speedHigh:
		return 480000000
	case speedSuper:
		return 5000000000
	case speedSuperPlus:
		return 10000000000
	default:
		return 0
	}
}
