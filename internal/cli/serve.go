package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"zipstream/internal/modes"
	"zipstream/pkg/config"
)

type serveCmdParams struct {
	root          string
	delay         string
	port          int
	ledger        string
	maxConcurrent int
}

var serveParams = &serveCmdParams{}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve archives over HTTP",
		Long: `Serve GET /archive/<id>/ as a streamed zip of <storage-root>/<id>.
GET / serves the index page.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVarP(&serveParams.root, "root", "r", "", "Storage root holding one directory per archive")
	cmd.Flags().StringVarP(&serveParams.delay, "delay", "d", "", "Pause after every chunk, e.g. 1s or 0.5")
	cmd.Flags().IntVarP(&serveParams.port, "port", "p", 0, "HTTP port")
	cmd.Flags().StringVar(&serveParams.ledger, "ledger", "", "DuckDB file recording every transfer")
	cmd.Flags().IntVar(&serveParams.maxConcurrent, "max-concurrent", -1, "Maximum archive processes at once (0 = unlimited)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	return modes.RunServer(cfg)
}

// applyServeFlags layers explicitly set flags over c and validates the
// result.
func applyServeFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("root") {
		c.Archive.StorageRoot = serveParams.root
	}
	if flags.Changed("delay") {
		d, err := config.ParseDelay(serveParams.delay)
		if err != nil {
			return err
		}
		c.Archive.Delay = d
	}
	if flags.Changed("port") {
		c.Server.Port = serveParams.port
	}
	if flags.Changed("ledger") {
		c.Ledger.Path = serveParams.ledger
	}
	if flags.Changed("max-concurrent") {
		c.Archive.MaxConcurrent = serveParams.maxConcurrent
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return c.Resolve()
}
