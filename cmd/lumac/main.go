// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command lumac is the offline compiler: it reads a .luma source file,
// runs it through the front end and verifier, and writes the resulting
// bytecode chunk to disk (or prints an intermediate stage for
// debugging), the way probec drives probe-lang's pipeline stage by
// stage.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lumalang/luma/lang/codegen"
	"github.com/lumalang/luma/lang/lexer"
	"github.com/lumalang/luma/lang/parser"
	"github.com/lumalang/luma/lang/token"
	"github.com/lumalang/luma/lang/vm"
	"github.com/lumalang/luma/undump"
)

var (
	outFile  = flag.String("o", "", "output file (default: input with .luc extension)")
	emit     = flag.String("emit", "bytecode", "pipeline stage to emit: tokens, ast, bytecode")
	optimize = flag.Bool("optimize", true, "set codegen.Options.Optimize (has no effect on the emitted bytecode)")
	verify   = flag.Bool("verify", true, "run the bytecode verifier before emitting")
	version  = flag.Bool("version", false, "print version and exit")
)

const versionString = "lumac version 0.1"

func main() {
	flag.Parse()

	if *version {
		fmt.Println(versionString)
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: lumac [flags] <source.luma>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	filename := flag.Arg(0)
	source, err := os.ReadFile(filename)
	if err != nil {
		fatalf("lumac: %v", err)
	}

	switch *emit {
	case "tokens":
		emitTokens(filename, source)
	case "ast":
		emitAST(filename, source)
	case "bytecode":
		emitBytecode(filename, source)
	default:
		fatalf("lumac: unknown -emit stage %q", *emit)
	}
}

func emitTokens(filename string, source []byte) {
	lx := lexer.New(filename, string(source))
	for {
		tok := lx.NextToken()
		fmt.Printf("%-20s %-12s %q\n", tok.Pos, tok.Type, tok.Literal)
		if tok.Type == token.EOF {
			break
		}
	}
}

func emitAST(filename string, source []byte) {
	p := parser.New(filename, string(source))
	chunk, err := p.ParseChunk()
	if err != nil {
		fatalf("lumac: parse error: %v", err)
	}
	fmt.Printf("%#v\n", chunk)
}

func emitBytecode(filename string, source []byte) {
	p := parser.New(filename, string(source))
	chunk, err := p.ParseChunk()
	if err != nil {
		fatalf("lumac: parse error: %v", err)
	}

	g := vm.New()
	proto, err := codegen.Compile(g, filename, chunk, codegen.Options{Optimize: *optimize})
	if err != nil {
		fatalf("lumac: codegen error: %v", err)
	}

	if *verify {
		if err := vm.Verify(proto); err != nil {
			fatalf("lumac: verify error: %v", err)
		}
	}

	out := *outFile
	if out == "" {
		out = withoutExt(filename) + ".luc"
	}
	if err := os.WriteFile(out, undump.Dump(proto), 0644); err != nil {
		fatalf("lumac: %v", err)
	}
}

func withoutExt(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
