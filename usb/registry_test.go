/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usb

import "testing"

func newTestDevice(bus, addr uint8) *Device {
	return &Device{
		bus:     bus,
		address: addr,
		alive:   true,
		rx:      newTransferPool(),
		tx:      newTransferPool(),
	}
}

func TestRegistryAddFind(t *testing.T) {
	var r registry
	d1 := newTestDevice(1, 2)
	d2 := newTestDevice(1, 3)
	r.add(d1)
	r.add(d2)

	if got := r.find(1, 2); got != d1 {
		t.Errorf("find(1,2) = %v, want %v", got, d1)
	}
	if got := r.find(1, 3); got != d2 {
		t.Errorf("find(1,3) = %v, want %v", got, d2)
	}
	if got := r.find(9, 9); got != nil {
		t.Errorf("find(9,9) = %v, want nil", got)
	}
	if got := len(r.all()); got != 2 {
		t.Errorf("len(all()) = %d, want 2", got)
	}
}

func TestRegistryRemove(t *testing.T) {
	var r registry
	d1 := newTestDevice(1, 2)
	d2 := newTestDevice(1, 3)
	r.add(d1)
	r.add(d2)

	r.remove(d1)
	if got := r.find(1, 2); got != nil {
		t.Errorf("find(1,2) after remove = %v, want nil", got)
	}
	if got := len(r.all()); got != 1 {
		t.Errorf("len(all()) after remove = %d, want 1", got)
	}
}

func TestRegistryMarkAllDead(t *testing.T) {
	var r registry
	d1 := newTestDevice(1, 2)
	d2 := newTestDevice(1, 3)
	r.add(d1)
	r.add(d2)

	r.markAllDead()
	if d1.Alive() || d2.Alive() {
		t.Errorf("devices still alive after markAllDead")
	}
}

func TestRegistryDead(t *testing.T) {
	var r registry

	dead := newTestDevice(1, 2)
	dead.alive = false
	r.add(dead)

	deadBusy := newTestDevice(1, 3)
	deadBusy.alive = false
	deadBusy.rx.add(&transfer{})
	r.add(deadBusy)

	alive := newTestDevice(1, 4)
	r.add(alive)

	got := r.dead()
	if len(got) != 2 || got[0] != dead || got[1] != deadBusy {
		t.Errorf("dead() = %v, want [%v %v]", got, dead, deadBusy)
	}
}
