// lifecycle-service
//
// Application lifecycle engine for the hiring pipeline.
// Exposes REST and gRPC APIs used by the Gateway to implement:
//   - submit(application): candidate intake and admin injection
//   - applicationView(applicationId): role-scoped projection
//   - requestTransition(applicationId, status): role-gated status changes
//
// Committed transitions emit side-effect intents (audit, notifications,
// placements) that are published to Redis after the write.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "lifecycle-service",
	Short:         "Application lifecycle engine",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "lifecycle-service"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
