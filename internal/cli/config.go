package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and ZIPSTREAM_*
environment variables have been applied. The output is valid config.yaml.`,
		Args: cobra.NoArgs,
		RunE: runConfig,
	}

	return cmd
}

func runConfig(cmd *cobra.Command, args []string) error {
	data, err := cfg.ToYAML()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfgPath != "" {
		fmt.Fprintf(out, "# loaded from %s\n", cfgPath)
	} else {
		fmt.Fprintln(out, "# no config file found; searched $ZIPSTREAM_CONFIG_PATH, ./config.yaml, ./config/config.yaml, /etc/zipstream/config.yaml")
	}
	_, err = out.Write(data)
	return err
}
