/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Initialization Pipeline
 */

package usb

import "unicode/utf16"

// requestGetDescriptor is bRequest for GET_DESCRIPTOR, and descTypeString
// in its wValue high byte selects the string descriptor type, per the USB
// spec's standard device request table.
const (
	stdRequestTypeIn     = 0x80
	requestGetDescriptor = 0x06
	descTypeString       = 0x03

	stringDescriptorWLength = 1024
)

// initialize runs claim -> GetLangID -> GetSerial -> arrival
// notification -> RX loop startup, in that order, matching
// device_complete_initialization's sequencing in
// original_source/src/usb.c. Any step's failure marks dev dead
// without running the steps after it.
func (core *Core) initialize(dev *Device) {
	dev.mu.Lock()
	h := dev.handle
	cdev := dev.cdev
	dev.mu.Unlock()
	if h == nil {
		return
	}

	ifaceNum, epOut, epIn, err := selectConfiguration(h, cdev, func(format string, args ...interface{}) {
		if core.log != nil {
			core.log.Warning(format, args...)
		}
	})
	if err != nil {
		if core.log != nil {
			core.log.Error("device %d:%d: no matching interface: %v", dev.bus, dev.address, err)
		}
		dev.markDead()
		return
	}

	if err := claimInterface(h, ifaceNum); err != nil {
		if core.log != nil {
			core.log.Error("device %d:%d: claim interface %d failed: %v", dev.bus, dev.address, ifaceNum, err)
		}
		dev.markDead()
		return
	}

	dev.mu.Lock()
	dev.interfaceNum = ifaceNum
	dev.epOut = epOut
	dev.epIn = epIn
	dev.maxPacketOut = getMaxPacketSize(cdev, epOut)
	if dev.maxPacketOut <= 0 {
		dev.maxPacketOut = defaultMaxPacketSize
	}
	dev.speedBitsPerSec = speedBitsPerSecond(getDeviceSpeed(cdev))
	dev.mu.Unlock()

	core.fetchLangID(dev)
}

// fetchLangID requests the language ID table at string descriptor
// index 0, then fetches the serial number in that language. The
// serial request does not reuse this transfer: fetchSerial allocates
// its own control transfer, and each callback releases the transfer
// it ran on.
func (core *Core) fetchLangID(dev *Device) {
	dev.mu.Lock()
	h := dev.handle
	dev.mu.Unlock()
	if h == nil {
		dev.markDead()
		return
	}

	wValue := uint16(descTypeString) << 8
	t := newControlTransfer(dev, stdRequestTypeIn, requestGetDescriptor, wValue, 0, stringDescriptorWLength)
	err := t.submit(h, 0, uint(ControlTimeout.Milliseconds()), func(t *transfer) {
		dev.tx.remove(t)
		defer t.release()

		data := t.controlData()
		if t.status() != transferCompleted || len(data) < 4 {
			if core.log != nil {
				core.log.Error("device %d:%d: failed to read langid table", dev.bus, dev.address)
			}
			dev.markDead()
			return
		}

		langID := uint16(data[2]) | uint16(data[3])<<8
		dev.mu.Lock()
		dev.langID = langID
		dev.mu.Unlock()

		core.fetchSerial(dev, langID)
	})
	if err != nil {
		dev.markDead()
		return
	}
	dev.tx.add(t)
}

func (core *Core) fetchSerial(dev *Device, langID uint16) {
	dev.mu.Lock()
	h := dev.handle
	cdev := dev.cdev
	dev.mu.Unlock()
	if h == nil {
		dev.markDead()
		return
	}

	desc, err := getDeviceDescriptor(cdev)
	if err != nil || desc.iSerialNumber == 0 {
		if core.log != nil {
			core.log.Error("device %d:%d: no serial number string descriptor", dev.bus, dev.address)
		}
		dev.markDead()
		return
	}

	wValue := uint16(descTypeString)<<8 | uint16(desc.iSerialNumber)
	t := newControlTransfer(dev, stdRequestTypeIn, requestGetDescriptor, wValue, langID, stringDescriptorWLength)
	sErr := t.submit(h, 0, uint(ControlTimeout.Milliseconds()), func(t *transfer) {
		dev.tx.remove(t)
		defer t.release()

		data := t.controlData()
		if t.status() != transferCompleted || len(data) < 2 {
			if core.log != nil {
				core.log.Error("device %d:%d: failed to read serial number", dev.bus, dev.address)
			}
			dev.markDead()
			return
		}

		serial := decodeUSBString(data)
		dev.mu.Lock()
		dev.serial = reformatSerial(serial)
		dev.mu.Unlock()

		core.completeInit(dev)
	})
	if sErr != nil {
		dev.markDead()
		return
	}
	dev.tx.add(t)
}

// decodeUSBString converts a GET_DESCRIPTOR(string) response --
// a length/type header followed by UTF-16LE code units -- into an
// ASCII string, substituting '?' for anything outside the printable
// ASCII range. Matches get_serial_callback's decode loop exactly,
// including stopping at the buffer length rather than requiring a
// NUL terminator (USB string descriptors aren't NUL-terminated).
func decodeUSBString(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	n := int(data[0])
	if n > len(data) {
		n = len(data)
	}
	if n < 2 {
		n = 2
	}
	units := (n - 2) / 2
	codeUnits := make([]uint16, units)
	for i := 0; i < units; i++ {
		off := 2 + i*2
		codeUnits[i] = uint16(data[off]) | uint16(data[off+1])<<8
	}

	runes := utf16.Decode(codeUnits)
	out := make([]byte, len(runes))
	for i, r := range runes {
		if r < 0x20 || r > 0x7e {
			out[i] = '?'
		} else {
			out[i] = byte(r)
		}
	}
	return string(out)
}

// completeInit tells the upper layer the device has arrived, and --
// unless it's rejected -- starts the inbound bulk loops. It runs from
// inside the serial-number callback, so a rejected arrival (or a
// device with no RX loop started) is only marked dead; the reap sweep
// that follows the current dispatch disconnects it.
func (core *Core) completeInit(dev *Device) {
	dev.mu.Lock()
	dev.initialized = true
	dev.mu.Unlock()

	if core.arrivals != nil && core.arrivals.DeviceAdded(dev) != 0 {
		dev.markDead()
		return
	}

	wanted := core.cfg.RxLoops
	if wanted <= 0 {
		wanted = NumRxLoops
	}

	started := 0
	for i := 0; i < wanted; i++ {
		if err := dev.submitRx(); err != nil {
			if core.log != nil {
				core.log.Warning("device %d:%d: rx loop %d failed to start: %v", dev.bus, dev.address, i, err)
			}
			break
		}
		started++
	}

	if started == 0 {
		if core.log != nil {
			core.log.Error("device %d:%d: could not start any rx loop", dev.bus, dev.address)
		}
		dev.markDead()
		return
	}
	if started < wanted && core.log != nil {
		core.log.Warning("device %d:%d: only %d/%d rx loops started", dev.bus, dev.address, started, wanted)
	}
}
