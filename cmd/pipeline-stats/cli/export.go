package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/davarch/pipeline-stats/internal/infrastructure/snapshot_fs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportFilename string
	exportGzip     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the full statistics document to a JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng := openEngine(ctx)

		path := exportPath(exportFilename, cfg.Data.Dir, exportGzip, time.Now())
		if err := snapshot_fs.New(path).Save(ctx, eng.Snapshot()); err != nil {
			return err
		}
		logger.Debug("exported", zap.String("path", path))

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "statistics exported to %s\n", path)
		return nil
	},
}

// exportPath places bare file names in the data directory. A timestamped
// name is used when none is given.
func exportPath(name, dir string, gz bool, now time.Time) string {
	if name == "" {
		name = "pipeline_stats_export_" + now.Format("20060102_150405") + ".json"
	}
	if gz && !strings.HasSuffix(name, ".gz") {
		name += ".gz"
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(dir, name)
}

func init() {
	exportCmd.Flags().StringVar(&exportFilename, "filename", "", "output file (default pipeline_stats_export_<timestamp>.json in the data dir)")
	exportCmd.Flags().BoolVar(&exportGzip, "gzip", false, "gzip the output")

	rootCmd.AddCommand(exportCmd)
}
