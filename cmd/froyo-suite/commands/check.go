package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/suite/pkg/config"
	"github.com/openfroyo/suite/pkg/console"
	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/preflight"
	"github.com/openfroyo/suite/pkg/transports/ssh"
)

func newCheckCommand(opts *globalOptions) *cobra.Command {
	var probe string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify local tools, the connection and host reachability",
		Long: `Check everything a run needs before it starts:
  - the ssh client (and nc for the netcat probe) on $PATH
  - a valid host, port and user
  - a readable private key when --identity is given
  - the host answering on its ssh port`,
		Example: `  froyo-suite check -H 10.0.0.5 -i ~/.ssh/id_ed25519`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd, func(cfg *config.Config) {
				if cmd.Flags().Changed("probe") {
					cfg.Executor.Probe = probe
				}
			})
			if err != nil {
				return err
			}

			con := console.Stdio()
			transport := cfg.TransportConfig()

			if err := preflight.New(preflight.WithLookPath(lookPath)).Require(transport.RequiredTools()...); err != nil {
				return err
			}
			con.Success("Local tools found: %v", transport.RequiredTools())

			conn := opts.connection(cfg)
			if err := conn.Validate(); err != nil {
				return err
			}
			con.Success("Connection %s:%s is valid", conn.Target(), conn.Port)

			if conn.Identity != "" {
				fingerprint, err := ssh.IdentityFingerprint(conn.Identity)
				if err != nil {
					return engine.NewValidationError("unusable identity file", err)
				}
				con.Success("Identity %s (%s)", conn.Identity, fingerprint)
			}

			waiter := &ssh.Waiter{
				Probe:    transport.NewProbe(nil),
				Attempts: transport.Attempts,
				Interval: transport.Interval,
				Sleep:    ssh.Sleep,
				Out:      con.Writer(),
			}
			if !waiter.Wait(cmd.Context(), conn.Host, conn.Port) {
				con.Failure("Host %s is not reachable on port %s", conn.Host, conn.Port)
				return &ExitError{Code: 1}
			}
			con.Success("Host %s is reachable on port %s", conn.Host, conn.Port)
			return nil
		},
	}

	cmd.Flags().StringVar(&probe, "probe", "", "reachability probe (nc, dial)")

	return cmd
}
