package curriculum

// KnowledgeUnit is an atomic teachable fact, method, or theorem.
// Units are immutable once published and are cited by questions and
// solution steps via their stable ID.
type KnowledgeUnit struct {
	// ID is the stable identifier, e.g. "unit-linear-eq-isolate".
	ID string `yaml:"id" json:"id"`

	// Code is the short human-readable code shown in citations, e.g. "T1", "M2".
	Code string `yaml:"code" json:"code"`

	// Name is the display name.
	Name string `yaml:"name" json:"name"`

	// TopicID is the owning topic. Empty for foundational units,
	// which belong to the shared pool available to every topic.
	TopicID string `yaml:"topic_id" json:"topicId"`

	// Foundational marks the unit as part of the shared pool.
	Foundational bool `yaml:"foundational" json:"foundational"`
}

// Subtopic is a curriculum grouping below a topic, ordered by Sequence.
type Subtopic struct {
	ID       string `yaml:"id" json:"id"`
	TopicID  string `yaml:"topic_id" json:"topicId"`
	Name     string `yaml:"name" json:"name"`
	Sequence int    `yaml:"sequence" json:"sequence"`

	// UnitIDs lists the knowledge units taught in this subtopic.
	UnitIDs []string `yaml:"unit_ids" json:"unitIds"`

	// Prerequisites lists subtopic IDs that must be mastered first.
	Prerequisites []string `yaml:"prerequisites" json:"prerequisites"`

	// EstimatedMins is the expected study time for one activity
	// on this subtopic. Used by the path scheduler's pacing.
	EstimatedMins int `yaml:"estimated_mins" json:"estimatedMins"`
}

// Topic is a top-level curriculum grouping, ordered by Sequence.
type Topic struct {
	ID        string     `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Sequence  int        `yaml:"sequence" json:"sequence"`
	Subtopics []Subtopic `yaml:"subtopics" json:"subtopics"`

	// Units are the topic-owned knowledge units.
	Units []KnowledgeUnit `yaml:"units" json:"units"`
}
