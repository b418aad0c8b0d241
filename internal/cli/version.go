package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aryankumar/fanout/internal/output"
	"github.com/aryankumar/fanout/pkg/version"
)

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display detailed version information for fanout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd)
		},
	}
}

func runVersion(cmd *cobra.Command) error {
	info := version.Get()
	w := cmd.OutOrStdout()

	format := viper.GetString("output")
	if format == "" {
		// Human-readable by default
		_, err := fmt.Fprintln(w, info.String())
		return err
	}

	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	formatter := output.NewFormatter(f,
		output.WithNoColor(viper.GetBool("no-color")),
		output.WithNoHeaders(viper.GetBool("no-headers")))
	if f == output.FormatTable || f == output.FormatWide {
		return formatter.Format(w, map[string]interface{}{
			"Version":    info.Version,
			"Commit":     info.Commit,
			"Build Time": info.BuildTime,
			"Go Version": info.GoVersion,
			"Platform":   info.Platform,
		})
	}
	return formatter.Format(w, info)
}
