// Package cmd holds the face-attendance command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Mark attendance by recognizing enrolled faces",
	Long: `Face Attendance enrolls reference photos of people and marks their
attendance when they are recognized in a photo, a video or a live camera feed.
Each person is recorded at most once per day.

Settings come from the environment; a .env file in the working directory
(or the file named by --env-file) is loaded first.`,
	SilenceUsage: true,
}

var envFile string

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading settings")
	rootCmd.SilenceErrors = true
	cobra.OnInitialize(loadEnvFile)
}

// loadEnvFile loads envFile without overriding variables already set. A
// missing default .env is fine; a missing explicit file is reported.
func loadEnvFile() {
	err := godotenv.Load(envFile)
	if err == nil || (errors.Is(err, fs.ErrNotExist) && envFile == ".env") {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: loading %s: %v\n", envFile, err)
}
