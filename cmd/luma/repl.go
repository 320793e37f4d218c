// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"

	"github.com/lumalang/luma/lang/vm"
	"github.com/lumalang/luma/stdlib/base"
)

const (
	primaryPrompt     = "> "
	continuationPrompt = ">> "
)

// repl runs an interactive read-eval-print loop against rt, using
// peterh/liner for line editing and persistent history the way the
// teacher's console subcommands use it for the JS console.
func repl(rt *runtime) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Println("Luma 0.1.0 -- Ctrl-D to exit")

	var pending strings.Builder
	prompt := primaryPrompt
	for {
		text, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				break
			}
			return err
		}
		if pending.Len() == 0 && strings.TrimSpace(text) == "" {
			continue
		}
		if pending.Len() == 0 && text == ".globals" {
			line.AppendHistory(text)
			printGlobals(rt.th)
			continue
		}

		if pending.Len() > 0 {
			pending.WriteByte('\n')
		}
		pending.WriteString(text)
		line.AppendHistory(text)

		src := pending.String()
		// Lua's own interactive loop tries "return <expr>" first so bare
		// expressions print their value, falling back to the statement
		// form if that fails to parse.
		err = rt.runString("return "+src, "=stdin")
		if err != nil {
			err = rt.runString(src, "=stdin")
		}
		if err != nil {
			if needsMoreInput(err) {
				prompt = continuationPrompt
				continue
			}
			fmt.Fprintln(os.Stderr, "luma:", err)
		} else if results := rt.lastResults; len(results) > 0 {
			printResults(rt.th, results)
		}

		pending.Reset()
		prompt = primaryPrompt
	}

	if f, err := os.Create(histPath); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	return nil
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".luma_history"
	}
	return filepath.Join(home, ".luma_history")
}

func printResults(th *vm.Thread, results []vm.Value) {
	parts := make([]string, len(results))
	for i, v := range results {
		parts[i] = base.ToString(th, v)
	}
	fmt.Println(strings.Join(parts, "\t"))
}

// printGlobals renders the global table as a name/type/value grid, the
// REPL's ".globals" introspection command.
func printGlobals(th *vm.Thread) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"name", "type", "value"})
	globals := th.Globals()
	for key, val, ok := globals.Next(vm.Nil); ok; key, val, ok = globals.Next(key) {
		table.Append([]string{base.ToString(th, key), val.TypeName(), base.ToString(th, val)})
	}
	table.Render()
}
