package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/suite/pkg/config"
	"github.com/openfroyo/suite/pkg/stores"
)

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		path   string
		limit  int
		offset int
	)

	openStore := func(cmd *cobra.Command) (*stores.SQLiteStore, error) {
		cfg, err := opts.load(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("history") {
				cfg.History.Path = path
			}
		})
		if err != nil {
			return nil, err
		}
		if cfg.HistoryPath() == "" {
			return nil, fmt.Errorf("no history database: set --history or history.path in the config file")
		}
		return openHistory(cmd.Context(), cfg.HistoryPath())
	}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Example: `  froyo-suite history --history ~/.froyo/history.db --limit 5
  froyo-suite history show 3f2a... --history ~/.froyo/history.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTARTED\tTARGET\tTAGS\tSTATUS\tUNITS\tOK\tFAILED\tSKIPPED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s@%s:%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.User, r.Host, r.Port,
					dash(r.Tags), r.Status, r.Units, r.Succeeded, r.Failed, r.Skipped)
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the unit results of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			units, err := store.ListUnitsByRun(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s on %s@%s:%s: %s\n", run.ID, run.User, run.Host, run.Port, run.Status)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tUNIT\tSTATUS\tEXIT\tLINES\tDURATION\tERROR")
			for _, u := range units {
				errMsg := ""
				if u.Error != nil {
					errMsg = strings.SplitN(*u.Error, "\n", 2)[0]
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
					u.Position+1, u.Name, u.Status, u.ExitCode, u.Lines,
					time.Duration(u.DurationMs)*time.Millisecond, dash(errMsg))
			}
			return w.Flush()
		},
	}

	cmd.PersistentFlags().StringVar(&path, "history", "", "history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	cmd.AddCommand(show)

	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
