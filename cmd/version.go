package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/capture"
)

// Set with -ldflags "-X github.com/kozaktomas/face-attendance/cmd.Version=...".
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// VersionInfo is the output of `face-attendance version --json`.
type VersionInfo struct {
	Version       string   `json:"version"`
	Commit        string   `json:"commit"`
	BuildDate     string   `json:"build_date"`
	GoVersion     string   `json:"go_version"`
	VideoBackends []string `json:"video_backends"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildVersionInfo()
		if mustGetBool(cmd, "json") {
			return outputJSON(info)
		}
		fmt.Printf("face-attendance %s\n", info.Version)
		fmt.Printf("  Commit:         %s\n", info.Commit)
		fmt.Printf("  Built:          %s\n", info.BuildDate)
		fmt.Printf("  Go:             %s\n", info.GoVersion)
		fmt.Printf("  Video backends: %s\n", strings.Join(info.VideoBackends, ", "))
		return nil
	},
}

// buildVersionInfo falls back to the VCS stamp of the binary when the commit
// was not injected at link time.
func buildVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:       Version,
		Commit:        CommitSHA,
		BuildDate:     BuildDate,
		GoVersion:     runtime.Version(),
		VideoBackends: capture.VideoBackends(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "unknown" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			}
		}
	}
	return info
}

func init() {
	versionCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)
}
