/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Device Registry
 */

package usb

// registry keeps the ordered list of Devices the core currently
// knows about. It is modeled on usbcommon.go's UsbAddrList: a small
// sorted/ordered slice with linear Find/Add/Remove, which is the
// right tool for lists that stay in the tens of entries, not an
// indexed map. Devices are kept in arrival order rather than sorted
// by (bus, address), since the upper layer iterates in the order
// devices were added when dumping state.
type registry struct {
	devices []*Device
}

// find returns the Device at (bus, address), or nil.
func (r *registry) find(bus, addr uint8) *Device {
	for _, d := range r.devices {
		if d.bus == bus && d.address == addr {
			return d
		}
	}
	return nil
}

// add appends d to the registry. The caller must have already
// confirmed no record exists for (d.bus, d.address); add does not
// de-duplicate, matching find_device's separate lookup-before-insert
// pattern in usb_device_add.
func (r *registry) add(d *Device) {
	r.devices = append(r.devices, d)
}

// remove drops d from the registry by identity. It does not touch
// d's handle or pools; callers must have already torn those down.
func (r *registry) remove(d *Device) {
	for i, cur := range r.devices {
		if cur == d {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			return
		}
	}
}

// all returns a snapshot slice of every registered device, safe for
// the caller to range over even if the registry mutates afterward.
func (r *registry) all() []*Device {
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// markAllDead clears every device's liveness flag directly, without
// routing through Device.markDead: this is a transient bookkeeping
// pass partway through a polling enumeration, not a real departure,
// and addDevice re-asserts aliveness for everything still physically
// present a few lines later in the same pass. The DeviceRemoved
// notification belongs to finalizeDisconnect, which only runs once a
// device has survived a full re-scan still dead.
func (r *registry) markAllDead() {
	for _, d := range r.devices {
		d.mu.Lock()
		d.alive = false
		d.mu.Unlock()
	}
}

// dead returns every device whose liveness flag is clear, regardless
// of how many transfers are still outstanding in its pools -- reaping
// one of these still has to go through the full cancel/wait sequence,
// not skip straight to freeing it.
func (r *registry) dead() []*Device {
	var out []*Device
	for _, d := range r.devices {
		if !d.Alive() {
			out = append(out, d)
		}
	}
	return out
}
