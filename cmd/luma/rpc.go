// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/lumalang/luma/logging"
	"github.com/lumalang/luma/stdlib/base"
)

// allowedOrigins gates both the CORS middleware wrapping /eval and the
// websocket upgrader's Origin check on /ws, so the two surfaces can't
// drift out of sync. "*" (the default, matching a local dev tool with no
// deployment story of its own) allows any origin.
var allowedOrigins = []string{"*"}

// evalRequest is the JSON body of a POST /eval call and a WS text frame:
// a single chunk to run against the shared runtime.
type evalRequest struct {
	Source string `json:"source"`
}

// evalResponse carries back the chunk's printed results or an error
// message, mirroring geth's JSON-RPC {result}/{error} shape closely
// enough to be familiar without pulling in the full JSON-RPC 2.0
// envelope this single-method endpoint doesn't need.
type evalResponse struct {
	Results []string `json:"results,omitempty"`
	Error   string   `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin applies allowedOrigins to the one request type the cors
// middleware below never sees: a websocket upgrade. Keeping both gated by
// the same list means /eval and /ws can't silently diverge.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// serveRPC starts the optional chunk-evaluation endpoint: POST /eval for
// one-shot requests and GET /ws for a persistent interactive socket,
// analogous to geth's --http/--ws RPC surface but scoped to this single
// "evaluate a chunk" method. The listener and the Ctrl-C watcher run under
// one errgroup so either a listen error or an interrupt brings the other
// down cleanly instead of leaking a goroutine.
func serveRPC(rt *runtime, addr string) error {
	router := httprouter.New()
	router.POST("/eval", httpEvalHandler(rt))
	router.GET("/ws", wsEvalHandler(rt))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	srv := &http.Server{Addr: addr, Handler: corsMiddleware.Handler(router)}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logging.Root().Info("serving RPC", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		<-sigCtx.Done()
		return srv.Shutdown(context.Background())
	})
	return g.Wait()
}

func httpEvalHandler(rt *runtime) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req evalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, evalResponse{Error: err.Error()})
			return
		}
		writeJSON(w, evalOnce(rt, req.Source))
	}
}

func wsEvalHandler(rt *runtime) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Root().Warn("ws upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		for {
			var req evalRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if err := conn.WriteJSON(evalOnce(rt, req.Source)); err != nil {
				return
			}
		}
	}
}

func evalOnce(rt *runtime, source string) evalResponse {
	if err := rt.runString(source, "=rpc"); err != nil {
		return evalResponse{Error: err.Error()}
	}
	results := make([]string, len(rt.lastResults))
	for i, v := range rt.lastResults {
		results[i] = base.ToString(rt.th, v)
	}
	return evalResponse{Results: results}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
