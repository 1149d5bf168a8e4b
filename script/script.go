// Package script embeds goja to run user-supplied JavaScript as a
// Transformation or Operator predicate body. Each execution gets a fresh
// goja runtime, mirroring how a TEE-hosted script engine isolates one
// invocation from the next: no state leaks between calls to the same
// instance.
package script

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
	"github.com/ironbee-oss/rulecore/operator"
	"github.com/ironbee-oss/rulecore/transformation"
)

// TransformEntryPoint is the JS function name a transformation script must
// define: function transform(input) { return ...; }
const TransformEntryPoint = "transform"

// EvaluateEntryPoint is the JS function name an operator script must
// define: function evaluate(input) { return true/false; }
const EvaluateEntryPoint = "evaluate"

// Engine compiles and runs scripted Transformation/Operator bodies,
// logging through zap rather than the core package's logrus logger - the
// two ambient logging stacks are kept distinct, one per subsystem.
type Engine struct {
	logger *zap.Logger
}

// NewEngine wraps logger. A nil logger is replaced with zap.NewNop().
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

type compiledScript struct {
	source string
	prog   *goja.Program
}

func (e *Engine) compile(source string) (*compiledScript, error) {
	prog, err := goja.Compile("script.js", source, false)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindEINVAL, "script.compile", "invalid script source", err)
	}
	return &compiledScript{source: source, prog: prog}, nil
}

// newRuntime builds a fresh, isolated goja runtime with a console.log that
// appends to logs, the way a per-request TEE script invocation would.
func (e *Engine) newRuntime() (*goja.Runtime, *[]string) {
	vm := goja.New()
	logs := make([]string, 0)

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		logs = append(logs, fmt.Sprint(args))
		return goja.Undefined()
	})
	_ = vm.Set("console", console)

	return vm, &logs
}

func (e *Engine) run(cs *compiledScript, entryPoint string, inputValue func(*goja.Runtime) goja.Value) (vmResult goja.Value, logs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rerrors.EOTHER("script.run", fmt.Sprintf("script panic: %v", r))
		}
	}()

	vm, logsPtr := e.newRuntime()
	if _, err := vm.RunProgram(cs.prog); err != nil {
		return nil, *logsPtr, rerrors.Wrap(rerrors.KindEOTHER, "script.run", "load script", err)
	}

	entry, ok := goja.AssertFunction(vm.Get(entryPoint))
	if !ok {
		return nil, *logsPtr, rerrors.EINVAL("script.run", "script does not define function "+entryPoint)
	}

	result, callErr := entry(goja.Undefined(), inputValue(vm))
	if callErr != nil {
		return nil, *logsPtr, rerrors.Wrap(rerrors.KindEOTHER, "script.run", "call "+entryPoint, callErr)
	}
	return result, *logsPtr, nil
}

// RegisterTransformation installs a "script" transformation on reg: its
// param is treated as JS source defining transform(input), called once per
// Field (handle_list is always false - the runtime distributes list inputs
// element-wise, same as any other transformation).
func (e *Engine) RegisterTransformation(reg *transformation.Registry, name string) (*transformation.Transformation, error) {
	create := func(ar *arena.Arena, param string) (any, error) {
		return e.compile(param)
	}
	execute := func(ar *arena.Arena, instanceData any, param string, input *field.Field) (*field.Field, error) {
		cs := instanceData.(*compiledScript)
		inputStr, _ := input.Stringify()

		result, logs, err := e.run(cs, TransformEntryPoint, func(vm *goja.Runtime) goja.Value {
			return vm.ToValue(inputStr)
		})
		for _, line := range logs {
			e.logger.Debug("script console.log", zap.String("transformation", name), zap.String("line", line))
		}
		if err != nil {
			return nil, err
		}
		return field.NewByteString(input.Name(), result.String()), nil
	}
	return reg.Register(name, false, create, execute, nil)
}

// RegisterOperator installs a "script" operator on reg: its param is JS
// source defining evaluate(input), returning a truthy value for a match.
func (e *Engine) RegisterOperator(reg *operator.Registry, name string, capabilities operator.Capability) (*operator.Operator, error) {
	create := func(ar *arena.Arena, param string) (any, error) {
		return e.compile(param)
	}
	execute := func(instanceData any, param string, input *field.Field) (int, *field.Field, error) {
		cs := instanceData.(*compiledScript)
		inputStr, _ := input.Stringify()

		result, logs, err := e.run(cs, EvaluateEntryPoint, func(vm *goja.Runtime) goja.Value {
			return vm.ToValue(inputStr)
		})
		for _, line := range logs {
			e.logger.Debug("script console.log", zap.String("operator", name), zap.String("line", line))
		}
		if err != nil {
			return 0, nil, err
		}
		if result.ToBoolean() {
			return 1, nil, nil
		}
		return 0, nil, nil
	}
	return reg.Register(name, capabilities, create, execute, nil)
}
