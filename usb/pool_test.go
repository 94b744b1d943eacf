/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usb

import "testing"

func TestShouldSendZLP(t *testing.T) {
	cases := []struct {
		length, mps int
		want        bool
	}{
		{64, 64, true},
		{128, 64, true},
		{63, 64, false},
		{65, 64, false},
		{0, 64, false},
		{64, 0, false},
	}
	for _, c := range cases {
		if got := shouldSendZLP(c.length, c.mps); got != c.want {
			t.Errorf("shouldSendZLP(%d,%d) = %v, want %v", c.length, c.mps, got, c.want)
		}
	}
}

func TestTransferPoolLifecycle(t *testing.T) {
	p := newTransferPool()
	if p.len() != 0 {
		t.Fatalf("new pool len = %d, want 0", p.len())
	}

	t1 := &transfer{}
	t2 := &transfer{}
	p.add(t1)
	p.add(t2)
	if p.len() != 2 {
		t.Fatalf("len after add = %d, want 2", p.len())
	}

	p.remove(t1)
	if p.len() != 1 {
		t.Fatalf("len after remove = %d, want 1", p.len())
	}
	all := p.all()
	if len(all) != 1 || all[0] != t2 {
		t.Fatalf("all() = %v, want [%v]", all, t2)
	}
}
