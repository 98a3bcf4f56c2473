package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/pathwise/internal/curriculum"
)

var curriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Inspect curriculum definitions",
}

var curriculumValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the curriculum directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("curriculum")
		cur, err := curriculum.Load(dir)
		if err != nil {
			return fmt.Errorf("validate curriculum: %w", err)
		}

		topics := cur.Topics()
		var subtopics, units int
		for _, t := range topics {
			subtopics += len(cur.SubtopicsForTopic(t.ID))
			units += len(cur.TopicUnits(t.ID))
		}

		fmt.Printf("OK: %d topics, %d subtopics, %d knowledge units, %d foundational units\n",
			len(topics), subtopics, units, len(cur.FoundationalUnits()))
		return nil
	},
}

func init() {
	curriculumCmd.AddCommand(curriculumValidateCmd)
}
