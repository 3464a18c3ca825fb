package sup

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/Johnermac/reaptree/lib"
)

// Signaler delivers signals to processes. *lib.Host implements it.
type Signaler interface {
	Signal(pid int, sig unix.Signal) error
}

// ForwardedSignals are relayed from the supervisor to its live children.
var ForwardedSignals = []os.Signal{
	unix.SIGINT,
	unix.SIGTERM,
	unix.SIGQUIT,
	unix.SIGHUP,
}

// StartSignalForwarder relays ForwardedSignals received by this process to
// every pid targets returns at that moment. The supervisor itself keeps
// running and the reaper keeps draining. Call the returned func to stop.
func StartSignalForwarder(s Signaler, targets func() []int) func() {
	sigCh := make(chan os.Signal, 16)
	signal.Notify(sigCh, ForwardedSignals...)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				us, ok := sig.(unix.Signal)
				if !ok {
					continue
				}
				forward(s, us, targets())
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func forward(s Signaler, sig unix.Signal, pids []int) {
	lib.LogWarn("received %s, forwarding to %d children", unix.SignalName(sig), len(pids))
	for _, pid := range pids {
		if err := s.Signal(pid, sig); err != nil {
			lib.LogWarn("forward: %v", err)
		}
	}
}
