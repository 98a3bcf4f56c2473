package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/pathwise/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "pathwise",
	Short: "Adaptive mastery and learning-path engine",
	Long:  "Pathwise is a backend engine that validates generated assessments, grades mastery tests, and schedules adaptive learning paths.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PATHWISE_DB env var)")
	rootCmd.PersistentFlags().String("curriculum", "curriculum", "Directory containing topic YAML files")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(curriculumCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then PATHWISE_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
