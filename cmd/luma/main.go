// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command luma is the REPL and script runner front end, the way gprobe is
// go-probe's: a urfave/cli.v1 app wiring configuration, logging, and the
// runtime together, with an interactive line-edited console for when no
// script is given.
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/lumalang/luma/logging"
	"github.com/lumalang/luma/lumaconfig"
)

var (
	evalFlag = cli.StringFlag{
		Name:  "e",
		Usage: "execute a chunk given as a string",
	}
	loadFlag = cli.StringFlag{
		Name:  "l",
		Usage: "require a library before running the script or entering the REPL",
	}
	interactiveFlag = cli.BoolFlag{
		Name:  "i",
		Usage: "enter interactive mode after running the script",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file (defaults to LUMA_CONFIG env var)",
	}
	rpcFlag = cli.BoolFlag{
		Name:  "rpc",
		Usage: "serve chunk evaluation over HTTP/WS instead of running a script or REPL",
	}
	rpcAddrFlag = cli.StringFlag{
		Name:  "rpcaddr",
		Usage: "address to bind -rpc to",
		Value: "127.0.0.1:8234",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "v",
		Usage: "enable debug-level logging",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "luma"
	app.Usage = "Luma language interpreter"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{evalFlag, loadFlag, interactiveFlag, configFlag, rpcFlag, rpcAddrFlag, verboseFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "luma:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	if ctx.Bool(verboseFlag.Name) {
		logging.SetRootLevel(logging.LvlDebug)
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rt := newRuntime(cfg)

	if lib := ctx.String(loadFlag.Name); lib != "" {
		if err := rt.runFile(lib); err != nil {
			return fmt.Errorf("loading -l %s: %w", lib, err)
		}
	}

	if ctx.Bool(rpcFlag.Name) {
		return serveRPC(rt, ctx.String(rpcAddrFlag.Name))
	}

	if src := ctx.String(evalFlag.Name); src != "" {
		if err := rt.runString(src, "=(command line)"); err != nil {
			fmt.Fprintln(os.Stderr, "luma:", err)
		}
	}

	args := ctx.Args()
	ranScript := false
	if len(args) > 0 {
		ranScript = true
		if err := rt.runFile(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, "luma:", err)
		}
	}

	if !ranScript || ctx.Bool(interactiveFlag.Name) {
		return repl(rt)
	}
	return nil
}

func loadConfig(ctx *cli.Context) (lumaconfig.Config, error) {
	if path := ctx.String(configFlag.Name); path != "" {
		return lumaconfig.Load(path)
	}
	return lumaconfig.LoadFromEnv()
}
