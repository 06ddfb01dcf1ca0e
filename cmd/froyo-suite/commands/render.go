package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/suite/pkg/dsl"
	"github.com/openfroyo/suite/pkg/engine"
)

func newRenderCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <suite.star>...",
		Short: "Print the transcripts a run would execute",
		Long: `Build every unit against the connection and print the resulting
transcripts without contacting the host. Units filtered out by tags are
omitted.`,
		Example: `  # Show what the web units would run on web1
  froyo-suite render -H web1 -t web site.star`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, nil)
			if err != nil {
				return err
			}
			conn := opts.connection(cfg)

			executor := engine.ExecutorFunc(func(_ context.Context, _ string) engine.Outcome {
				return engine.Outcome{Status: engine.UnitStatusSkipped, ExitCode: -1}
			})
			orch := engine.New(conn, executor, engine.WithLogger(log.Logger))

			loader := dsl.NewLoader(dsl.WithLogger(log.Logger))
			for _, file := range args {
				if err := loader.LoadFile(cmd.Context(), file, orch); err != nil {
					return err
				}
			}

			transcripts, err := orch.Export(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, transcript := range transcripts {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "# unit %d\n%s\n", i+1, transcript)
			}
			return nil
		},
	}

	return cmd
}
