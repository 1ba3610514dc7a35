// liftplan-mcp runs a stdio MCP server against a LiftPlan instance, letting
// LLM clients query sessions, the calendar and training stats over the REST
// API (typically reached through Tailscale).
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/liftplan/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the LiftPlan server")
	flag.Parse()

	// Logs go to stderr: stdout carries the MCP stdio transport.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ds := mcp.NewHTTPClient(*baseURL)
	s := mcp.New(ds, Version, log)

	log.Info("liftplan-mcp starting", "url", *baseURL, "version", Version)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
