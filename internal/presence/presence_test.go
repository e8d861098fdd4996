package presence

import (
	"sync"
	"testing"
)

type fakeConn struct{ name string }

func (f *fakeConn) Send(event string, data any) bool { return true }

func TestRegisterAndLookup(t *testing.T) {
	d := NewDirectory()
	c := &fakeConn{name: "a"}

	if replaced := d.Register(1, c); replaced != nil {
		t.Errorf("Register returned replaced conn %v, want nil", replaced)
	}

	got, ok := d.Lookup(1)
	if !ok || got != c {
		t.Fatalf("Lookup(1) = %v, %v; want registered conn", got, ok)
	}
	if !d.IsOnline(1) {
		t.Error("IsOnline(1) = false, want true")
	}
	if d.IsOnline(2) {
		t.Error("IsOnline(2) = true, want false")
	}
}

func TestLastConnectionWins(t *testing.T) {
	d := NewDirectory()
	old := &fakeConn{name: "old"}
	fresh := &fakeConn{name: "fresh"}

	d.Register(1, old)
	replaced := d.Register(1, fresh)
	if replaced != old {
		t.Errorf("Register returned %v, want previous conn", replaced)
	}

	got, _ := d.Lookup(1)
	if got != fresh {
		t.Errorf("Lookup(1) = %v, want the newer conn", got)
	}
}

func TestStaleUnregisterDoesNotEvict(t *testing.T) {
	d := NewDirectory()
	old := &fakeConn{name: "old"}
	fresh := &fakeConn{name: "fresh"}

	d.Register(1, old)
	d.Register(1, fresh)

	// The old connection's disconnect arrives after the reconnect.
	if d.Unregister(1, old) {
		t.Error("Unregister with stale conn reported removal")
	}
	if !d.IsOnline(1) {
		t.Fatal("stale unregister evicted the newer connection")
	}

	if !d.Unregister(1, fresh) {
		t.Error("Unregister with current conn reported no removal")
	}
	if d.IsOnline(1) {
		t.Error("user still online after unregister")
	}
}

func TestOnlineUserIDs(t *testing.T) {
	d := NewDirectory()
	d.Register(1, &fakeConn{})
	d.Register(2, &fakeConn{})
	d.Register(3, &fakeConn{})
	d.Unregister(2, mustLookup(t, d, 2))

	ids := d.OnlineUserIDs()
	if len(ids) != 2 {
		t.Fatalf("OnlineUserIDs returned %d ids, want 2", len(ids))
	}
	seen := map[int]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[1] || !seen[3] || seen[2] {
		t.Errorf("OnlineUserIDs = %v, want {1,3}", ids)
	}
	if d.Len() != 2 {
		t.Errorf("Len = %d, want 2", d.Len())
	}
}

func mustLookup(t *testing.T, d *Directory, id int) Conn {
	t.Helper()
	c, ok := d.Lookup(id)
	if !ok {
		t.Fatalf("user %d not registered", id)
	}
	return c
}

func TestConcurrentAccess(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := &fakeConn{}
			d.Register(id, c)
			d.Lookup(id)
			d.IsOnline(id)
			d.OnlineUserIDs()
			d.Unregister(id, c)
		}(i)
	}
	wg.Wait()

	if d.Len() != 0 {
		t.Errorf("Len = %d after all unregistered, want 0", d.Len())
	}
}
