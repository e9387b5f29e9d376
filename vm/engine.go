// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package vm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/santiago0411/gojvm/classfile"
)

var (
	ErrUnknownOpcode       = errors.New("unrecognized opcode")
	ErrUnsupportedTarget   = errors.New("unsupported ldc/getstatic/invokevirtual target")
	ErrCallDepthExceeded   = errors.New("invokestatic recursion depth exceeded")
	ErrReceiverTypeInvalid = errors.New("println receiver is not the System.out sentinel")
)

// systemOutSentinel is the ClassRef value getstatic pushes for the single
// static field this engine recognises, java/lang/System.out.
const systemOutSentinel = "FakePrintStream"

// MaxCallDepth bounds invokestatic recursion. The class-file format has no
// stack map or verifier in this subset to reject runaway recursion ahead
// of time, so the engine imposes its own ceiling the way classfile bounds
// attacker-controlled counts (see classfile.MaxDefaultConstantPoolEntries):
// a buggy or adversarial class file shouldn't be able to exhaust the Go
// call stack.
const MaxCallDepth = 2048

// Options configures an Engine.
type Options struct {
	// Out receives println output, by default os.Stdout.
	Out io.Writer

	// A custom logger.
	Logger log.Logger
}

// Engine executes the methods of a single decoded class file. It carries
// no package-level mutable state (unlike the reference implementation's
// global CURRENT_FRAME): every invocation threads its own frame and call
// depth explicitly, so nothing here prevents running two Engines over two
// files concurrently.
type Engine struct {
	file   *classfile.File
	out    io.Writer
	logger *log.Helper
}

// NewEngine builds an Engine bound to file.
func NewEngine(file *classfile.File, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	var logger *log.Helper
	if opts.Logger == nil {
		logger = log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout),
			log.FilterLevel(log.LevelError)))
	} else {
		logger = log.NewHelper(opts.Logger)
	}
	return &Engine{file: file, out: out, logger: logger}
}

// ExecuteMethod resolves name to a method on the engine's class and runs it
// with no arguments, matching the reference implementation's CLI entry
// point (classfile.File.MethodByName is a simple-name lookup, so overload
// resolution does not apply to the entry method either).
func (e *Engine) ExecuteMethod(name string) error {
	method, err := e.file.MethodByName(name)
	if err != nil {
		return err
	}
	_, err = e.invoke(method, nil, 0)
	return err
}

// invoke runs method with the given positional arguments already bound to
// its parameters, returning its return value (VoidValue() if the
// descriptor's return type is void).
func (e *Engine) invoke(method *classfile.Method, args []Value, depth int) (Value, error) {
	if depth > MaxCallDepth {
		return Value{}, fmt.Errorf("%w: %s", ErrCallDepthExceeded, method.Name)
	}

	code, err := method.CodeAttribute()
	if err != nil {
		return Value{}, err
	}

	frame := newFrame(code.MaxStack, code.MaxLocals)
	for i, arg := range args {
		// Locals are raw 32-bit cells (see Frame's doc comment): a Float
		// argument's bits are deposited as-is, matching the reference
		// implementation's *(float*)local = ... cast. No opcode in this
		// engine's set reads a local back out as a float (there is no
		// fload), so this only matters for descriptor-completeness.
		cell := arg.Int
		if arg.Kind == KindFloat {
			cell = int32(math.Float32bits(arg.Float32))
		}
		if err := frame.writeLocal(i, cell); err != nil {
			return Value{}, fmt.Errorf("binding parameter %d of %s: %w", i, method.Name, err)
		}
	}

	return e.run(method, frame, code.Bytecode, depth)
}

func (e *Engine) run(method *classfile.Method, frame *Frame, code []byte, depth int) (Value, error) {
	pc := 0
	for pc < len(code) {
		opcode := Opcode(code[pc])
		opcodeStart := pc
		pc++

		switch {
		case isIConst(opcode):
			if err := frame.push(IntValue(iConstValue(opcode))); err != nil {
				return Value{}, err
			}

		case opcode == OpBIPush:
			if pc >= len(code) {
				return Value{}, fmt.Errorf("%w: bipush truncated", ErrUnknownOpcode)
			}
			// The reference implementation reads this byte unsigned and
			// tags it Byte; gojvm follows the spec-correct reading
			// instead: sign-extend to Int (see SPEC_FULL.md §6).
			v := int32(int8(code[pc]))
			pc++
			if err := frame.push(IntValue(v)); err != nil {
				return Value{}, err
			}

		case opcode == OpSIPush:
			v, next, err := readI16(code, pc)
			if err != nil {
				return Value{}, err
			}
			pc = next
			// Tagged Short, not normalized to Int like bipush: istore,
			// iadd, if_icmpge and ireturn all pop an Int and reject a
			// Short, so a sipush'd value is only usable as a println
			// argument, which prints Short the same as Int.
			if err := frame.push(ShortValue(int32(v))); err != nil {
				return Value{}, err
			}

		case opcode == OpLDC:
			if pc >= len(code) {
				return Value{}, fmt.Errorf("%w: ldc truncated", ErrUnknownOpcode)
			}
			index := uint16(code[pc])
			pc++
			val, err := e.resolveLDC(index)
			if err != nil {
				return Value{}, err
			}
			if err := frame.push(val); err != nil {
				return Value{}, err
			}

		case opcode == OpILoad:
			if pc >= len(code) {
				return Value{}, fmt.Errorf("%w: iload truncated", ErrUnknownOpcode)
			}
			index := int(code[pc])
			pc++
			local, err := frame.readLocal(index)
			if err != nil {
				return Value{}, err
			}
			if err := frame.push(IntValue(local)); err != nil {
				return Value{}, err
			}

		case isILoadN(opcode):
			local, err := frame.readLocal(iLoadNIndex(opcode))
			if err != nil {
				return Value{}, err
			}
			if err := frame.push(IntValue(local)); err != nil {
				return Value{}, err
			}

		case opcode == OpIStore:
			if pc >= len(code) {
				return Value{}, fmt.Errorf("%w: istore truncated", ErrUnknownOpcode)
			}
			index := int(code[pc])
			pc++
			v, err := frame.popKind(KindInt)
			if err != nil {
				return Value{}, err
			}
			if err := frame.writeLocal(index, v.Int); err != nil {
				return Value{}, err
			}

		case isIStoreN(opcode):
			v, err := frame.popKind(KindInt)
			if err != nil {
				return Value{}, err
			}
			if err := frame.writeLocal(iStoreNIndex(opcode), v.Int); err != nil {
				return Value{}, err
			}

		case opcode == OpIAdd:
			b, err := frame.popKind(KindInt)
			if err != nil {
				return Value{}, err
			}
			a, err := frame.popKind(KindInt)
			if err != nil {
				return Value{}, err
			}
			if err := frame.push(IntValue(a.Int + b.Int)); err != nil {
				return Value{}, err
			}

		case opcode == OpIInc:
			if pc+1 >= len(code) {
				return Value{}, fmt.Errorf("%w: iinc truncated", ErrUnknownOpcode)
			}
			index := int(code[pc])
			delta := int32(int8(code[pc+1]))
			pc += 2
			cur, err := frame.readLocal(index)
			if err != nil {
				return Value{}, err
			}
			if err := frame.writeLocal(index, cur+delta); err != nil {
				return Value{}, err
			}

		case opcode >= OpIfICmpEQ && opcode <= OpIfICmpLE:
			offset, next, err := readI16(code, pc)
			if err != nil {
				return Value{}, err
			}
			pc = next
			if opcode != OpIfICmpGE {
				return Value{}, fmt.Errorf("%w: if_icmp variant %#x", ErrUnknownOpcode, byte(opcode))
			}
			b, err := frame.popKind(KindInt)
			if err != nil {
				return Value{}, err
			}
			a, err := frame.popKind(KindInt)
			if err != nil {
				return Value{}, err
			}
			if a.Int >= b.Int {
				pc = branchTarget(pc, offset)
			}

		case opcode == OpGoto:
			offset, next, err := readI16(code, pc)
			if err != nil {
				return Value{}, err
			}
			pc = branchTarget(next, offset)

		case opcode == OpIReturn:
			// The reference implementation reads top-of-stack here without
			// popping it, relying on InvokeStatic's frame teardown order
			// to "happen to" transfer the right value. gojvm makes the
			// pop-and-transfer explicit: ireturn pops from its own frame,
			// and execInvokeStatic (the invokestatic caller-side logic)
			// pushes the returned value onto the caller's frame.
			v, err := frame.popKind(KindInt)
			if err != nil {
				return Value{}, err
			}
			return v, nil

		case opcode == OpReturn:
			return VoidValue(), nil

		case opcode == OpGetStatic:
			idx, next, err := readU16(code, pc)
			if err != nil {
				return Value{}, err
			}
			pc = next
			if err := e.execGetStatic(frame, idx); err != nil {
				return Value{}, err
			}

		case opcode == OpInvokeVirtual:
			idx, next, err := readU16(code, pc)
			if err != nil {
				return Value{}, err
			}
			pc = next
			if err := e.execInvokeVirtual(frame, idx); err != nil {
				return Value{}, err
			}

		case opcode == OpInvokeStatic:
			idx, next, err := readU16(code, pc)
			if err != nil {
				return Value{}, err
			}
			pc = next
			if err := e.execInvokeStatic(frame, idx, depth); err != nil {
				return Value{}, err
			}

		default:
			return Value{}, fmt.Errorf("%w: %#x at pc %d in %s", ErrUnknownOpcode, byte(opcode), opcodeStart, method.Name)
		}
	}

	return VoidValue(), nil
}

// branchTarget implements the branch offset semantics: offset is relative
// to the address of the branching opcode itself. posAfterOperand is the cursor position right after the
// 2-byte offset operand (opcode address + 3); subtracting 3 un-does that
// advance so the arithmetic lands on opcodeAddress + offset.
func branchTarget(posAfterOperand int, offset int16) int {
	return posAfterOperand + int(offset) - 3
}

func readU16(code []byte, pos int) (uint16, int, error) {
	if pos+2 > len(code) {
		return 0, 0, fmt.Errorf("%w: truncated u16 operand", ErrUnknownOpcode)
	}
	return uint16(code[pos])<<8 | uint16(code[pos+1]), pos + 2, nil
}

func readI16(code []byte, pos int) (int16, int, error) {
	v, next, err := readU16(code, pos)
	return int16(v), next, err
}

func (e *Engine) resolveLDC(index uint16) (Value, error) {
	c := &e.file.ConstantPool
	tag, err := c.TagAt(index)
	if err != nil {
		return Value{}, err
	}
	switch tag {
	case classfile.TagInteger:
		s, err := c.IntegerAt(index)
		if err != nil {
			return Value{}, err
		}
		return IntValue(s), nil
	case classfile.TagFloat:
		f, err := c.FloatAt(index)
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case classfile.TagString:
		s, err := c.StringAt(index)
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	default:
		return Value{}, fmt.Errorf("%w: ldc index %d", ErrUnsupportedTarget, index)
	}
}

func (e *Engine) execGetStatic(frame *Frame, index uint16) error {
	className, memberName, err := e.file.ConstantPool.FieldrefAt(index)
	if err != nil {
		return err
	}
	if className != "java/lang/System" || memberName != "out" {
		return fmt.Errorf("%w: getstatic %s.%s", ErrUnsupportedTarget, className, memberName)
	}
	return frame.push(ClassRefValue(systemOutSentinel))
}

func (e *Engine) execInvokeVirtual(frame *Frame, index uint16) error {
	className, memberName, err := e.file.ConstantPool.MethodrefAt(index)
	if err != nil {
		return err
	}
	if className != "java/io/PrintStream" || memberName != "println" {
		return fmt.Errorf("%w: invokevirtual %s.%s", ErrUnsupportedTarget, className, memberName)
	}

	arg, err := frame.pop()
	if err != nil {
		return err
	}
	receiver, err := frame.pop()
	if err != nil {
		return err
	}
	if receiver.Kind != KindClassRef || receiver.ClassRef != systemOutSentinel {
		return ErrReceiverTypeInvalid
	}

	switch arg.Kind {
	case KindString:
		fmt.Fprintf(e.out, "%s\n", arg.Str)
	case KindByte:
		fmt.Fprintf(e.out, "%d\n", uint8(arg.Int))
	case KindShort, KindInt:
		fmt.Fprintf(e.out, "%d\n", arg.Int)
	case KindFloat:
		fmt.Fprintf(e.out, "%f\n", arg.Float32)
	default:
		return fmt.Errorf("%w: println argument of kind %s", ErrTypeMismatch, arg.Kind)
	}
	return nil
}

func (e *Engine) execInvokeStatic(frame *Frame, index uint16, depth int) error {
	memberName, err := e.file.ConstantPool.MemberNameAt(index)
	if err != nil {
		return err
	}

	// Simple-name-only resolution: the reference implementation ignores
	// the descriptor entirely when looking up the callee, which is unsound
	// in the presence of overloads. gojvm preserves that behaviour rather
	// than fixing it to (name, descriptor) matching, per the decision
	// recorded in DESIGN.md's Open Questions.
	method, err := e.file.MethodByName(memberName)
	if err != nil {
		return err
	}

	descriptor, err := classfile.ParseDescriptor(method.Descriptor)
	if err != nil {
		return err
	}

	args := make([]Value, len(descriptor.Params))
	for i := len(descriptor.Params) - 1; i >= 0; i-- {
		v, err := frame.pop()
		if err != nil {
			return fmt.Errorf("invokestatic %s: %w", memberName, err)
		}
		args[i] = v
	}

	ret, err := e.invoke(method, args, depth+1)
	if err != nil {
		return fmt.Errorf("invokestatic %s: %w", memberName, err)
	}

	if descriptor.Return != classfile.KindVoid {
		if err := frame.push(ret); err != nil {
			return err
		}
	}
	return nil
}
