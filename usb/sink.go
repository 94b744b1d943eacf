/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Upward interfaces
 *
 * The multiplexing protocol and the client-facing socket server that
 * sit above this core are out of scope. These two interfaces are the
 * entire surface the core needs from whatever implements them --
 * modeling byte_sink/device_added/device_removed from spec.md §6 as
 * injectable Go interfaces rather than hardcoded function pointers.
 */

package usb

// ByteSink receives every payload read off a device's bulk IN
// endpoint, in order, for as long as the device stays alive.
type ByteSink interface {
	Deliver(dev *Device, data []byte)
}

// ArrivalNotifier is told about devices completing initialization and
// about devices going away. DeviceAdded returning nonzero rejects the
// device: no RX loop is started, and it is disconnected by the reap
// sweep that follows the current dispatch.
type ArrivalNotifier interface {
	DeviceAdded(dev *Device) int
	DeviceRemoved(dev *Device)
}

func (core *Core) deliverInbound(dev *Device, data []byte) {
	if core.sink != nil {
		core.sink.Deliver(dev, data)
	}
}

func (core *Core) notifyRemoved(dev *Device) {
	if core.arrivals != nil {
		core.arrivals.DeviceRemoved(dev)
	}
}
