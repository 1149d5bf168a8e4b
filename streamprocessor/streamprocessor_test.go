package streamprocessor

import (
	"testing"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
)

func TestRegister_IndexesByType(t *testing.T) {
	r := NewRegistry()
	r.Register("json-scan", []string{"application/json"}, nil, nil, nil)
	r.Register("multipart-scan", []string{"multipart/form-data", "application/json"}, nil, nil, nil)

	names := r.NamesForType("application/json")
	if len(names) != 2 {
		t.Fatalf("NamesForType = %v, want 2 entries", names)
	}
	if names[0] != "json-scan" || names[1] != "multipart-scan" {
		t.Errorf("NamesForType order = %v", names)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	r.Register("x", nil, nil, nil, nil)
	_, err := r.Register("x", nil, nil, nil, nil)
	if !rerrors.HasKind(err, rerrors.KindEINVAL) {
		t.Errorf("err = %v, want EINVAL", err)
	}
}

func TestCreateInstance_DestroyOnRelease(t *testing.T) {
	r := NewRegistry()
	destroyed := false
	r.Register("x", []string{"t"}, func(ar *arena.Arena) (any, error) {
		return 42, nil
	}, nil, func(data any) {
		destroyed = data == 42
	})

	ar := arena.New()
	inst, err := r.CreateInstance(ar, "x")
	if err != nil {
		t.Fatalf("CreateInstance error: %v", err)
	}
	n, err := inst.Execute([]byte("hello"))
	if err != nil || n != 5 {
		t.Errorf("Execute (nil execute passthrough) = (%d,%v), want (5,nil)", n, err)
	}
	ar.Release()
	if !destroyed {
		t.Errorf("destroy should have run")
	}
}

func TestCreateInstance_Unregistered(t *testing.T) {
	r := NewRegistry()
	ar := arena.New()
	_, err := r.CreateInstance(ar, "nope")
	if !rerrors.HasKind(err, rerrors.KindENOENT) {
		t.Errorf("err = %v, want ENOENT", err)
	}
}

func TestChain_ExecuteRunsEveryProcessorInOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.Register("first", []string{"t"}, nil, func(data any, chunk []byte) (int, error) {
		order = append(order, "first")
		return len(chunk), nil
	}, nil)
	r.Register("second", []string{"t"}, nil, func(data any, chunk []byte) (int, error) {
		order = append(order, "second")
		return len(chunk), nil
	}, nil)

	ar := arena.New()
	chain, err := r.CreateChain(ar, "t")
	if err != nil {
		t.Fatalf("CreateChain error: %v", err)
	}
	if chain.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", chain.Len())
	}

	n, err := chain.Execute([]byte("body"))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if n != 4 {
		t.Errorf("Execute() consumed = %d, want 4", n)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("execution order = %v, want [first second]", order)
	}
	if err := chain.Errors(); err != nil {
		t.Errorf("Errors() = %v, want nil", err)
	}
}

func TestChain_ExecuteAggregatesFailuresButContinues(t *testing.T) {
	r := NewRegistry()
	second := false
	r.Register("broken", []string{"t"}, nil, func(data any, chunk []byte) (int, error) {
		return 0, rerrors.EOTHER("test", "scan failed")
	}, nil)
	r.Register("ok", []string{"t"}, nil, func(data any, chunk []byte) (int, error) {
		second = true
		return len(chunk), nil
	}, nil)

	ar := arena.New()
	chain, err := r.CreateChain(ar, "t")
	if err != nil {
		t.Fatalf("CreateChain error: %v", err)
	}

	_, err = chain.Execute([]byte("body"))
	if !rerrors.HasKind(err, rerrors.KindEOTHER) {
		t.Errorf("Execute() err = %v, want EOTHER", err)
	}
	if !second {
		t.Errorf("second processor should still have run after first failed")
	}
	if chain.Errors() == nil {
		t.Errorf("Errors() = nil, want the aggregated failure")
	}
}

func TestChain_CreateChainSkipsFailingDefButReportsFirstError(t *testing.T) {
	r := NewRegistry()
	r.Register("broken-create", []string{"t"}, func(ar *arena.Arena) (any, error) {
		return nil, rerrors.EINVAL("test", "bad config")
	}, nil, nil)
	r.Register("fine", []string{"t"}, nil, nil, nil)

	ar := arena.New()
	chain, err := r.CreateChain(ar, "t")
	if !rerrors.HasKind(err, rerrors.KindEINVAL) {
		t.Errorf("CreateChain() err = %v, want EINVAL", err)
	}
	if chain.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (only the successfully-created def)", chain.Len())
	}
	if chain.Errors() == nil {
		t.Errorf("Errors() = nil, want the aggregated create failure")
	}
}
