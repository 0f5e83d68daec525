package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"zipstream/internal/archive"
	"zipstream/internal/domain"
	"zipstream/pkg/config"
	"zipstream/pkg/logger"
	"zipstream/pkg/platform"
)

type dumpCmdParams struct {
	noTUI bool
}

var dumpParams = &dumpCmdParams{}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <dir> <out-file>",
		Short: "Archive one local directory into a file",
		Long: `Run the same archive pipeline the server uses, writing the stream to a
local file instead of an HTTP response. Interrupting the command kills the
archive tool and removes the partial file.`,
		Args: cobra.ExactArgs(2),
		RunE: runDump,
	}

	cmd.Flags().BoolVar(&dumpParams.noTUI, "no-tui", false, "Print plain progress instead of the interactive spinner")

	return cmd
}

func runDump(cmd *cobra.Command, args []string) error {
	dir, out := args[0], args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !dumpParams.noTUI && isatty.IsTerminal(os.Stdout.Fd()) {
		return runDumpTUI(ctx, cfg, dir, out)
	}

	transfer, err := dumpDirectory(ctx, cfg.Archive, dir, out, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s in %d chunks, %s)\n",
		out, formatBytes(transfer.Bytes), transfer.Chunks, transfer.Duration.Round(time.Millisecond))
	return nil
}

// dumpDirectory archives dir into the file out. The file is removed again
// when the transfer does not complete.
func dumpDirectory(ctx context.Context, ac config.ArchiveConfig, dir, out string, progress func(total int64)) (*domain.Transfer, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", out, err)
	}
	if strings.HasPrefix(absOut, absDir+string(filepath.Separator)) {
		return nil, fmt.Errorf("output file %s must be outside the archived directory", out)
	}

	p := platform.NewPlatform()
	resolver := archive.NewResolver(filepath.Dir(absDir), p)
	id := filepath.Base(absDir)
	if _, err := resolver.Resolve(id); err != nil {
		return nil, fmt.Errorf("cannot archive %s: %w", dir, err)
	}

	f, err := os.Create(absOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", out, err)
	}

	a := archive.New(ac, p, archive.WithResolver(resolver))
	transfer, err := a.Archive(ctx, id, archive.NewWriterSink(f, progress))

	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close %s: %w", out, cerr)
	}
	if err != nil {
		if rerr := os.Remove(absOut); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			logger.Warn("failed to remove partial archive", "path", absOut, "error", rerr)
		}
		return transfer, err
	}
	return transfer, nil
}
