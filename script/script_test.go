package script

import (
	"testing"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
	"github.com/ironbee-oss/rulecore/operator"
	"github.com/ironbee-oss/rulecore/transformation"
)

func TestRegisterTransformation_UppercasesInput(t *testing.T) {
	e := NewEngine(nil)
	reg := transformation.NewRegistry()
	if _, err := e.RegisterTransformation(reg, "js_upper"); err != nil {
		t.Fatalf("RegisterTransformation error: %v", err)
	}

	ar := arena.New()
	inst, err := reg.CreateInstance(ar, "js_upper", "function transform(input) { return input.toUpperCase(); }")
	if err != nil {
		t.Fatalf("CreateInstance error: %v", err)
	}

	out, err := inst.Apply(ar, field.NewByteString("ARGS", "hello"))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	v, _ := out.String()
	if v != "HELLO" {
		t.Errorf("Apply() = %q, want HELLO", v)
	}
}

func TestRegisterTransformation_InvalidSource(t *testing.T) {
	e := NewEngine(nil)
	reg := transformation.NewRegistry()
	e.RegisterTransformation(reg, "js_broken")

	ar := arena.New()
	_, err := reg.CreateInstance(ar, "js_broken", "function transform( {{{ not js")
	if !rerrors.HasKind(err, rerrors.KindEINVAL) {
		t.Errorf("err = %v, want EINVAL", err)
	}
}

func TestRegisterTransformation_MissingEntryPoint(t *testing.T) {
	e := NewEngine(nil)
	reg := transformation.NewRegistry()
	e.RegisterTransformation(reg, "js_noop")

	ar := arena.New()
	inst, err := reg.CreateInstance(ar, "js_noop", "var x = 1;")
	if err != nil {
		t.Fatalf("CreateInstance error: %v", err)
	}
	_, err = inst.Apply(ar, field.NewByteString("", "hello"))
	if !rerrors.HasKind(err, rerrors.KindEINVAL) {
		t.Errorf("err = %v, want EINVAL (missing transform function)", err)
	}
}

func TestRegisterTransformation_ScriptPanicBecomesEOTHER(t *testing.T) {
	e := NewEngine(nil)
	reg := transformation.NewRegistry()
	e.RegisterTransformation(reg, "js_throw")

	ar := arena.New()
	inst, err := reg.CreateInstance(ar, "js_throw", "function transform(input) { throw new Error('boom'); }")
	if err != nil {
		t.Fatalf("CreateInstance error: %v", err)
	}
	_, err = inst.Apply(ar, field.NewByteString("", "hello"))
	if !rerrors.HasKind(err, rerrors.KindEOTHER) {
		t.Errorf("err = %v, want EOTHER", err)
	}
}

func TestRegisterOperator_MatchesPredicate(t *testing.T) {
	e := NewEngine(nil)
	reg := operator.NewRegistry()
	if _, err := e.RegisterOperator(reg, "js_contains_admin", 0); err != nil {
		t.Fatalf("RegisterOperator error: %v", err)
	}

	ar := arena.New()
	inst, err := reg.CreateInstance(ar, "js_contains_admin", "function evaluate(input) { return input.indexOf('admin') >= 0; }", 0)
	if err != nil {
		t.Fatalf("CreateInstance error: %v", err)
	}

	result, _, err := inst.Execute(field.NewByteString("", "user=admin"))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result != 1 {
		t.Errorf("Execute() result = %d, want 1", result)
	}

	result, _, err = inst.Execute(field.NewByteString("", "user=guest"))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result != 0 {
		t.Errorf("Execute() result = %d, want 0", result)
	}
}

func TestRegisterOperator_RequiresCapability(t *testing.T) {
	e := NewEngine(nil)
	reg := operator.NewRegistry()
	e.RegisterOperator(reg, "js_check", operator.CapabilityPhaseRequestBody)

	ar := arena.New()
	_, err := reg.CreateInstance(ar, "js_check", "function evaluate(input) { return true; }", operator.CapabilityPhaseResponseHeader)
	if !rerrors.HasKind(err, rerrors.KindENOTIMPL) {
		t.Errorf("err = %v, want ENOTIMPL", err)
	}
}
