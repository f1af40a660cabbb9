package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/adapters/memory"
	loomredis "github.com/weftworks/loom/pkg/adapters/redis"
	"github.com/weftworks/loom/pkg/model"
	"github.com/weftworks/loom/pkg/ports"
)

// buildLogger creates the process logger from the --log-level flag. Logs go
// to stderr so piped response output stays clean.
func buildLogger(cmd *cobra.Command) *slog.Logger {
	levelName, _ := cmd.Flags().GetString("log-level")
	return logging.New(os.Stderr, logging.ParseLevel(levelName))
}

// buildStores wires the durable stores: Redis when --redis is set, the
// in-process adapters otherwise. The returned closer is nil-safe.
func buildStores(cmd *cobra.Command) (ports.KillStore, ports.ResumeStore, func() error, error) {
	addr, _ := cmd.Flags().GetString("redis")
	if addr == "" {
		return memory.NewKillStore(), memory.NewResumeStore(), func() error { return nil }, nil
	}

	client := backend.NewClient(&backend.Options{Addr: addr})
	return loomredis.NewKillStore(client), loomredis.NewResumeStore(client), client.Close, nil
}

// buildSession wires the model session from the --model-cmd flag.
func buildSession(cmd *cobra.Command, logger *slog.Logger) (ports.ModelSession, error) {
	modelCmd, _ := cmd.Flags().GetString("model-cmd")
	if modelCmd == "" {
		return nil, fmt.Errorf("--model-cmd is required (a program reading JSON messages on stdin and writing the completion to stdout)")
	}
	parts := strings.Fields(modelCmd)
	completer := model.NewCommandCompleter(parts[0], parts[1:])
	return model.NewSession(completer, model.WithLogger(logger)), nil
}
