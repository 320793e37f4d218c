// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// Instruction is one 32-bit fixed-width bytecode word (spec §4.7):
// 6-bit opcode, 8-bit A, and either (9-bit B, 9-bit C) or an 18-bit Bx/sBx.
type Instruction uint32

const (
	sizeOp = 6
	sizeA  = 8
	sizeB  = 9
	sizeC  = 9
	sizeBx = sizeB + sizeC

	posOp = 0
	posA  = posOp + sizeOp
	posC  = posA + sizeA
	posB  = posC + sizeC
	posBx = posC

	maxArgBx  = 1<<sizeBx - 1
	maxArgSBx = maxArgBx >> 1

	// bitRK marks a B/C operand as a constant-pool index instead of a
	// register index, per spec's RK operand convention.
	bitRK = 1 << (sizeB - 1)
)

func mask1(n, p uint) uint32 { return ((1 << n) - 1) << p }

// Encode assembles one instruction in iABC form.
func Encode(op OpCode, a, b, c int) Instruction {
	return Instruction(uint32(op)<<posOp | uint32(a)<<posA | uint32(b)<<posB | uint32(c)<<posC)
}

// EncodeBx assembles one instruction in iABx form (Bx is unsigned: LOADK,
// CLOSURE, constant/prototype table indices).
func EncodeBx(op OpCode, a, bx int) Instruction {
	return Instruction(uint32(op)<<posOp | uint32(a)<<posA | uint32(bx)<<posBx)
}

// EncodeSBx assembles one instruction in iAsBx form (signed Bx: JMP,
// FORLOOP, FORPREP jump offsets).
func EncodeSBx(op OpCode, a, sbx int) Instruction {
	return EncodeBx(op, a, sbx+maxArgSBx)
}

func (i Instruction) OpCode() OpCode { return OpCode(uint32(i) >> posOp & mask1(sizeOp, 0)) }
func (i Instruction) A() int         { return int(uint32(i) >> posA & mask1(sizeA, 0)) }
func (i Instruction) B() int         { return int(uint32(i) >> posB & mask1(sizeB, 0)) }
func (i Instruction) C() int         { return int(uint32(i) >> posC & mask1(sizeC, 0)) }
func (i Instruction) Bx() int        { return int(uint32(i) >> posBx & mask1(sizeBx, 0)) }
func (i Instruction) SBx() int       { return i.Bx() - maxArgSBx }

// IsK reports whether an RK-encoded operand indexes the constant pool.
func IsK(rk int) bool { return rk&bitRK != 0 }

// IndexK extracts the constant-pool index from an RK-encoded operand.
func IndexK(rk int) int { return rk &^ bitRK }

// RKAsK encodes constant index k as an RK operand.
func RKAsK(k int) int { return k | bitRK }

// OpCode is the 6-bit instruction tag. The set is exactly the 38 opcodes
// spec §4.7 requires.
type OpCode uint8

const (
	OpMove OpCode = iota
	OpLoadK
	OpLoadBool
	OpLoadNil
	OpGetUpval
	OpGetGlobal
	OpGetTable
	OpSetGlobal
	OpSetUpval
	OpSetTable
	OpNewTable
	OpSelf
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
	OpNot
	OpLen
	OpConcat
	OpJmp
	OpEq
	OpLt
	OpLe
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpForLoop
	OpForPrep
	OpTForLoop
	OpSetList
	OpClose
	OpClosure
	OpVararg

	opCodeCount
)

var opNames = [opCodeCount]string{
	OpMove: "MOVE", OpLoadK: "LOADK", OpLoadBool: "LOADBOOL", OpLoadNil: "LOADNIL",
	OpGetUpval: "GETUPVAL", OpGetGlobal: "GETGLOBAL", OpGetTable: "GETTABLE",
	OpSetGlobal: "SETGLOBAL", OpSetUpval: "SETUPVAL", OpSetTable: "SETTABLE",
	OpNewTable: "NEWTABLE", OpSelf: "SELF",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpPow: "POW",
	OpUnm: "UNM", OpNot: "NOT", OpLen: "LEN", OpConcat: "CONCAT",
	OpJmp: "JMP", OpEq: "EQ", OpLt: "LT", OpLe: "LE", OpTest: "TEST", OpTestSet: "TESTSET",
	OpCall: "CALL", OpTailCall: "TAILCALL", OpReturn: "RETURN",
	OpForLoop: "FORLOOP", OpForPrep: "FORPREP", OpTForLoop: "TFORLOOP",
	OpSetList: "SETLIST", OpClose: "CLOSE", OpClosure: "CLOSURE", OpVararg: "VARARG",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "INVALID"
}

// Valid reports whether op is a defined opcode, for the bytecode verifier.
func (op OpCode) Valid() bool { return op < opCodeCount }

// isTestOp reports whether op is one of the conditional opcodes that must
// be followed by a JMP (EQ/LT/LE/TEST/TESTSET), per the verifier's rule.
func isTestOp(op OpCode) bool {
	switch op {
	case OpEq, OpLt, OpLe, OpTest, OpTestSet:
		return true
	default:
		return false
	}
}
