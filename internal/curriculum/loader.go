package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// topicFile is the on-disk YAML shape for a single topic definition.
type topicFile struct {
	Topic        *Topic          `yaml:"topic"`
	Foundational []KnowledgeUnit `yaml:"foundational_units"`
}

// Load reads all topic YAML files under rootDir and builds a Curriculum.
// A file may define one topic, a foundational unit pool, or both.
// Non-YAML files are skipped.
func Load(rootDir string) (*Curriculum, error) {
	var topics []Topic
	var foundational []KnowledgeUnit

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var tf topicFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		if tf.Topic != nil && tf.Topic.ID != "" {
			topics = append(topics, *tf.Topic)
		}
		foundational = append(foundational, tf.Foundational...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("no topic definitions found under %s", rootDir)
	}

	c, err := New(topics, foundational)
	if err != nil {
		return nil, err
	}

	slog.Info("curriculum loaded",
		"topics", len(topics),
		"subtopics", len(c.subtopics),
		"units", len(c.unitsByID),
	)
	return c, nil
}
