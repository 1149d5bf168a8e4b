package vars

import (
	"testing"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
)

func TestExpandTest(t *testing.T) {
	cases := []struct {
		s    string
		want bool
	}{
		{"plain literal", false},
		{"method=%{REQUEST_METHOD}", true},
		{"unterminated %{NOPE", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ExpandTest(tc.s); got != tc.want {
			t.Errorf("ExpandTest(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

func TestExpand_LiteralOnly(t *testing.T) {
	c := NewConfig()
	ar := arena.New()
	e, err := AcquireExpand(c, ar, "no vars here")
	if err != nil {
		t.Fatalf("AcquireExpand error: %v", err)
	}
	store := NewStore(c)
	got, err := e.Execute(store)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got != "no vars here" {
		t.Errorf("Execute() = %q", got)
	}
}

func TestExpand_SingleVar(t *testing.T) {
	c := NewConfig()
	src, _ := c.Register("REQUEST_METHOD", PhaseNone, PhaseNone)
	store := NewStore(c)
	src.Set(store, field.NewByteString("", "GET"))

	ar := arena.New()
	e, err := AcquireExpand(c, ar, "method=%{REQUEST_METHOD}!")
	if err != nil {
		t.Fatalf("AcquireExpand error: %v", err)
	}
	got, err := e.Execute(store)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got != "method=GET!" {
		t.Errorf("Execute() = %q, want method=GET!", got)
	}
}

func TestExpand_UnsetVarYieldsError(t *testing.T) {
	c := NewConfig()
	c.Register("REQUEST_METHOD", PhaseNone, PhaseNone)
	store := NewStore(c)

	ar := arena.New()
	e, _ := AcquireExpand(c, ar, "m=%{REQUEST_METHOD}")
	got, err := e.Execute(store)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got != "m=ERROR" {
		t.Errorf("Execute() = %q, want m=ERROR", got)
	}
}

func TestExpand_UnterminatedIsLiteral(t *testing.T) {
	c := NewConfig()
	ar := arena.New()
	e, err := AcquireExpand(c, ar, "prefix %{NOPE")
	if err != nil {
		t.Fatalf("AcquireExpand error: %v", err)
	}
	store := NewStore(c)
	got, _ := e.Execute(store)
	if got != "prefix %{NOPE" {
		t.Errorf("Execute() = %q", got)
	}
}

func TestExpand_FilterWithNestedExpand(t *testing.T) {
	c := NewConfig()
	argsSrc, _ := c.Register("ARGS", PhaseNone, PhaseNone)
	nameSrc, _ := c.Register("TX:name", PhaseNone, PhaseNone)
	store := NewStore(c)
	argsSrc.Append(store, field.NewByteString("user", "alice"))
	nameSrc.Set(store, field.NewByteString("", "user"))

	ar := arena.New()
	e, err := AcquireExpand(c, ar, "v=%{ARGS:%{TX:name}}")
	if err != nil {
		t.Fatalf("AcquireExpand error: %v", err)
	}
	got, err := e.Execute(store)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got != "v=alice" {
		t.Errorf("Execute() = %q, want v=alice", got)
	}
}

func TestAcquireTargetFromString_TrailingColonIsTrivial(t *testing.T) {
	c := NewConfig()
	c.Register("ARGS", PhaseNone, PhaseNone)
	ar := arena.New()
	tgt, err := AcquireTargetFromString(c, ar, "ARGS:")
	if err != nil {
		t.Fatalf("AcquireTargetFromString error: %v", err)
	}
	if tgt.filter != nil || tgt.filterExpand != nil {
		t.Errorf("trailing colon should produce a trivial (unfiltered) target")
	}
}

func TestAcquireTargetFromString_EmptyName(t *testing.T) {
	c := NewConfig()
	ar := arena.New()
	_, err := AcquireTargetFromString(c, ar, ":filter")
	if !rerrors.HasKind(err, rerrors.KindEINVAL) {
		t.Errorf("err = %v, want EINVAL", err)
	}
}

func TestAcquireTargetFromString_CoinedNameWithColonIsNotSplit(t *testing.T) {
	c := NewConfig()
	ar := arena.New()
	tgt, err := AcquireTargetFromString(c, ar, "TX:my_counter")
	if err != nil {
		t.Fatalf("AcquireTargetFromString error: %v", err)
	}
	if tgt.SourceName() != "TX:my_counter" {
		t.Errorf("SourceName() = %q, want TX:my_counter (whole string acquired as one coined name)", tgt.SourceName())
	}
	if tgt.filter != nil || tgt.filterExpand != nil {
		t.Errorf("a coined name with no known prefix should carry no filter")
	}
}

func TestAcquireTargetFromString_WithStaticFilter(t *testing.T) {
	c := NewConfig()
	src, _ := c.Register("ARGS", PhaseNone, PhaseNone)
	store := NewStore(c)
	src.Append(store, field.NewByteString("user", "alice"))
	src.Append(store, field.NewByteString("pass", "x"))

	ar := arena.New()
	tgt, err := AcquireTargetFromString(c, ar, "ARGS:user")
	if err != nil {
		t.Fatalf("AcquireTargetFromString error: %v", err)
	}
	got, err := tgt.Get(store)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
}
