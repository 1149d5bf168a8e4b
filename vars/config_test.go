package vars

import (
	"testing"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
)

func TestRegister_AssignsSequentialIndices(t *testing.T) {
	c := NewConfig()
	s1, err := c.Register("REQUEST_METHOD", PhaseRequestHeader, PhaseRequestHeader)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	s2, err := c.Register("ARGS", PhaseRequestHeader, PhaseNone)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if s1.index != 0 || s2.index != 1 {
		t.Errorf("indices = (%d,%d), want (0,1)", s1.index, s2.index)
	}
	if c.NextIndex() != 2 {
		t.Errorf("NextIndex() = %d, want 2", c.NextIndex())
	}
}

func TestRegister_Duplicate(t *testing.T) {
	c := NewConfig()
	if _, err := c.Register("ARGS", PhaseNone, PhaseNone); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	_, err := c.Register("args", PhaseNone, PhaseNone)
	if !rerrors.HasKind(err, rerrors.KindEEXIST) {
		t.Errorf("duplicate Register err = %v, want EEXIST", err)
	}
}

func TestRegister_InvalidPhaseWindow(t *testing.T) {
	c := NewConfig()
	_, err := c.Register("ARGS", PhaseResponseHeader, PhaseRequestHeader)
	if !rerrors.HasKind(err, rerrors.KindEINVAL) {
		t.Errorf("err = %v, want EINVAL", err)
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	c := NewConfig()
	c.Register("REMOTE_ADDR", PhaseConnect, PhaseConnect)
	if _, ok := c.Lookup("remote_addr"); !ok {
		t.Errorf("Lookup should be case-insensitive")
	}
}

func TestAcquire_UnregisteredWithoutArena(t *testing.T) {
	c := NewConfig()
	_, err := c.Acquire(nil, "TX:whatever")
	if !rerrors.HasKind(err, rerrors.KindENOENT) {
		t.Errorf("err = %v, want ENOENT", err)
	}
}

func TestAcquire_UnregisteredWithArena(t *testing.T) {
	c := NewConfig()
	ar := arena.New()
	src, err := c.Acquire(ar, "TX:counter")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if src.IsIndexed() {
		t.Errorf("unregistered acquire should not be indexed")
	}
	if src.Name() != "TX:counter" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestAcquire_PrefersRegistered(t *testing.T) {
	c := NewConfig()
	registered, _ := c.Register("ARGS", PhaseNone, PhaseNone)
	ar := arena.New()
	src, err := c.Acquire(ar, "ARGS")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if src != registered {
		t.Errorf("Acquire should return the registered source, got a fresh one")
	}
}
