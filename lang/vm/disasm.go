// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable columnar listing of a Proto's
// bytecode, one "[pc] line OPCODE operands" row per instruction (format
// "[%04d] %-4d %-12s ..."), covering the full 38-opcode set with RK/Bx/sBx
// operand decoding.
func Disassemble(p *Proto) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; source %q, %d params, %d upvalues, %d instructions\n",
		p.Source, p.NumParams, len(p.Upvalues), len(p.Code))

	for pc, instr := range p.Code {
		op := instr.OpCode()
		line := p.LineAt(pc)
		switch op {
		case OpLoadK, OpGetGlobal, OpSetGlobal, OpClosure:
			fmt.Fprintf(&b, "[%04d] %-4d %-12s R%d, %d\n", pc, line, op, instr.A(), instr.Bx())
		case OpJmp, OpForLoop, OpForPrep:
			fmt.Fprintf(&b, "[%04d] %-4d %-12s R%d, %d\n", pc, line, op, instr.A(), instr.SBx())
		case OpMove, OpNot, OpUnm, OpLen, OpGetUpval, OpSetUpval, OpVararg, OpClose:
			fmt.Fprintf(&b, "[%04d] %-4d %-12s R%d, R%d\n", pc, line, op, instr.A(), instr.B())
		case OpLoadBool, OpLoadNil, OpCall, OpTailCall, OpReturn, OpTForLoop, OpSetList:
			fmt.Fprintf(&b, "[%04d] %-4d %-12s R%d, %d, %d\n", pc, line, op, instr.A(), instr.B(), instr.C())
		default:
			fmt.Fprintf(&b, "[%04d] %-4d %-12s R%d, %s, %s\n", pc, line, op, instr.A(), rkStr(instr.B()), rkStr(instr.C()))
		}
	}

	for i, inner := range p.Protos {
		fmt.Fprintf(&b, "\n; inner prototype %d\n%s", i, Disassemble(inner))
	}
	return b.String()
}

func rkStr(operand int) string {
	if IsK(operand) {
		return fmt.Sprintf("K%d", IndexK(operand))
	}
	return fmt.Sprintf("R%d", operand)
}
