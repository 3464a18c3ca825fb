package sup

import (
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Johnermac/reaptree/lib"
)

func TestSignalForwarder(t *testing.T) {
	h := newFakeHost()
	h.hold[0] = true
	pid, err := h.Spawn(lib.Task{})
	if err != nil {
		t.Fatal(err)
	}

	stop := StartSignalForwarder(h, func() []int { return []int{pid} })
	defer stop()

	if err := unix.Kill(os.Getpid(), unix.SIGHUP); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sent := h.sent(); len(sent) > 0 {
			if sent[0] != (sentSignal{pid, unix.SIGHUP}) {
				t.Fatalf("forwarded %v", sent[0])
			}
			got, st, err := h.WaitAny(0)
			if err != nil || got != pid || st != lib.Signaled(unix.SIGHUP) {
				t.Fatalf("WaitAny() = %d, %s, %v", got, st, err)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("SIGHUP was not forwarded")
}

func TestForwardIgnoresGoneChildren(t *testing.T) {
	h := newFakeHost()
	forward(h, unix.SIGTERM, []int{1, 2})
	if sent := h.sent(); len(sent) != 2 {
		t.Fatalf("sent = %v, every target must be tried", sent)
	}
}
