/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Transfer Pool
 */

package usb

import "fmt"

// transferPool tracks every in-flight transfer belonging to one
// Device in one direction (RX or TX). A transfer moves through
// exactly one pool from submission to its terminal callback, never
// shared, never double-owned -- mirroring rx_xfers/tx_xfers in
// original_source/src/usb.c.
type transferPool struct {
	inFlight map[*transfer]struct{}
}

func newTransferPool() *transferPool {
	return &transferPool{inFlight: make(map[*transfer]struct{})}
}

func (p *transferPool) len() int { return len(p.inFlight) }

func (p *transferPool) add(t *transfer) { p.inFlight[t] = struct{}{} }

func (p *transferPool) remove(t *transfer) { delete(p.inFlight, t) }

func (p *transferPool) all() []*transfer {
	out := make([]*transfer, 0, len(p.inFlight))
	for t := range p.inFlight {
		out = append(out, t)
	}
	return out
}

// cancelAll requests cancellation of every transfer still in the
// pool. It does not wait or free anything; disconnect's bounded
// dispatch loop is what drains the pool afterward.
func (p *transferPool) cancelAll() {
	for t := range p.inFlight {
		t.cancel()
	}
}

// forceRelease frees every remaining transfer unconditionally. Used
// only after disconnect's cancellation budget is exhausted and some
// transfers never reported a terminal callback in time -- the same
// last resort usb_disconnect falls back to.
func (p *transferPool) forceRelease() {
	for t := range p.inFlight {
		t.release()
	}
	p.inFlight = make(map[*transfer]struct{})
}

// sendBulk submits dev's data on the OUT endpoint. When the payload
// length is an exact multiple of the endpoint's max packet size, a
// second, zero-length transfer is submitted from the primary's
// completion callback once the primary has succeeded -- the ZLP that
// tells the far side a full-sized write wasn't truncated. A ZLP
// submission failure is not logged or reported, and does not change
// the primary's result.
func (dev *Device) sendBulk(data []byte, onComplete func(ok bool, err error)) error {
	dev.mu.Lock()
	h := dev.handle
	ep := dev.epOut
	mps := dev.maxPacketOut
	dev.mu.Unlock()

	if h == nil {
		return ErrDeviceGone
	}

	t := newBulkTransfer(dev, kindBulkOut, len(data))
	copy(t.buf, data)

	needsZLP := shouldSendZLP(len(data), mps)

	err := t.submit(h, ep, uint(ControlTimeout.Milliseconds()), func(t *transfer) {
		dev.tx.remove(t)
		status := t.status()
		ok := status == transferCompleted
		t.release()

		if ok && needsZLP {
			zlp := newBulkTransfer(dev, kindBulkOut, 0)
			dev.mu.Lock()
			h2 := dev.handle
			dev.mu.Unlock()
			if h2 != nil {
				dev.tx.add(zlp)
				zerr := zlp.submit(h2, ep, uint(ControlTimeout.Milliseconds()), func(z *transfer) {
					dev.tx.remove(z)
					z.release()
				})
				if zerr != nil {
					dev.tx.remove(zlp)
				}
			}
		}

		if onComplete != nil {
			onComplete(ok, statusError(status))
		}
	})
	if err != nil {
		return err
	}
	dev.tx.add(t)
	return nil
}

// usbMRU is the fixed buffer size used for every inbound bulk
// transfer, matching USB_MRU in original_source/src/usb.c.
const usbMRU = 1 << 16

// submitRx submits one inbound bulk transfer. On success the payload
// is handed to the core's byte sink and the same transfer is
// resubmitted in place, keeping the pool size constant; on failure
// the transfer is removed and freed and the device is marked dead --
// matching rx_callback's "resubmit on success, give up the device on
// failure" behavior.
func (dev *Device) submitRx() error {
	dev.mu.Lock()
	h := dev.handle
	ep := dev.epIn
	dev.mu.Unlock()

	if h == nil {
		return ErrDeviceGone
	}

	t := newBulkTransfer(dev, kindBulkIn, usbMRU)

	var complete func(t *transfer)
	complete = func(t *transfer) {
		if t.status() != transferCompleted {
			dev.rx.remove(t)
			t.release()
			dev.markDead()
			return
		}

		if dev.core != nil {
			n := t.actualLength()
			if n > 0 {
				dev.core.deliverInbound(dev, t.buf[:n])
			}
		}

		dev.mu.Lock()
		h2 := dev.handle
		dev.mu.Unlock()
		if h2 == nil {
			dev.rx.remove(t)
			t.release()
			return
		}

		if err := t.submit(h2, ep, 0, complete); err != nil {
			dev.rx.remove(t)
			t.release()
			dev.markDead()
		}
	}

	if err := t.submit(h, ep, 0, complete); err != nil {
		return err
	}
	dev.rx.add(t)
	return nil
}

// shouldSendZLP reports whether a bulk OUT write of length bytes
// needs a trailing zero-length packet to avoid looking truncated to
// the far side, matching tx_callback's check in
// original_source/src/usb.c: only a nonempty write whose length is an
// exact multiple of the endpoint's max packet size needs one.
func shouldSendZLP(length, maxPacketSize int) bool {
	return maxPacketSize > 0 && length > 0 && length%maxPacketSize == 0
}

// transferCompleted is LIBUSB_TRANSFER_COMPLETED; the only status
// that represents a fully successful transfer.
const transferCompleted = 0

func statusError(status int) error {
	if status == transferCompleted {
		return nil
	}
	return fmt.Errorf("usb: transfer status %d", status)
}
