//go:build linux

package lib

import (
	"os"
	"testing"
)

func TestReadIdentitySelf(t *testing.T) {
	id, err := ReadIdentity(os.Getpid())
	if err != nil {
		t.Fatalf("ReadIdentity: %v", err)
	}
	if id.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", id.PID, os.Getpid())
	}
	if id.PPID != os.Getppid() {
		t.Errorf("PPID = %d, want %d", id.PPID, os.Getppid())
	}
	if id.Name == "" || id.State == "" {
		t.Errorf("incomplete identity %+v", id)
	}
	if id.Stopped() {
		t.Error("running test process reported as stopped")
	}
}

func TestReadIdentityMissing(t *testing.T) {
	// pid_max never reaches this
	if _, err := ReadIdentity(1 << 30); err == nil {
		t.Fatal("expected error for nonexistent pid")
	}
}
