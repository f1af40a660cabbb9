package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftworks/loom/pkg/definition"
	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/render"
	"github.com/weftworks/loom/pkg/stream"
	"github.com/weftworks/loom/pkg/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Run a workflow definition to completion",
	Long: `Run loads a YAML workflow definition, compiles it into a state machine
and drives it until a terminal state, a pause point, or the transition
budget. Response content goes to stdout; status lines go to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := buildLogger(cmd)

		def, err := definition.Load(args[0])
		if err != nil {
			return err
		}
		m, err := definition.NewCompiler(definition.WithLogger(logger)).Compile(def)
		if err != nil {
			return err
		}

		session, err := buildSession(cmd, logger)
		if err != nil {
			return err
		}
		killStore, resumeStore, closeStores, err := buildStores(cmd)
		if err != nil {
			return err
		}
		defer closeStores()

		task, _ := cmd.Flags().GetString("task")
		user, _ := cmd.Flags().GetString("user")
		requestID, _ := cmd.Flags().GetString("request-id")
		resources, _ := cmd.Flags().GetStringSlice("resource")

		refs := make([]domain.ResourceRef, 0, len(resources))
		for _, id := range resources {
			refs = append(refs, domain.ResourceRef{ID: id})
		}

		driver := workflow.NewDriver(m, session, killStore,
			workflow.WithResumeStore(resumeStore),
			workflow.WithRenderer(render.New(render.WithLogger(logger))),
			workflow.WithLogger(logger),
		)

		outcome, err := driver.Run(cmd.Context(), workflow.RunParams{
			User:      user,
			RequestID: requestID,
			Task:      task,
			Resources: refs,
			Output:    stream.NewWriterChannel(os.Stdout, os.Stderr),
		})
		if err != nil {
			return err
		}

		if outcome.Paused {
			fmt.Fprintf(os.Stderr, "run paused at %q; resume with the emitted record\n", outcome.Final)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("task", "", "Natural-language objective for the run")
	runCmd.Flags().String("user", "local", "Caller identity for kill-switch records")
	runCmd.Flags().String("request-id", "", "Request ID (generated when empty)")
	runCmd.Flags().StringSlice("resource", nil, "Retrievable resource ID (repeatable)")
	runCmd.Flags().String("model-cmd", "", "Program invoked for model completions")
	rootCmd.AddCommand(runCmd)
}
