package curriculum

import (
	"fmt"
	"slices"
	"sort"
)

// Curriculum holds the full topic/subtopic/unit hierarchy with
// precomputed lookup tables keyed by stable IDs. It is built once
// (from YAML files or in-memory definitions) and read-only afterwards.
type Curriculum struct {
	topics       []Topic
	topicsByID   map[string]*Topic
	subtopics    []Subtopic
	subtopicByID map[string]*Subtopic
	unitsByID    map[string]*KnowledgeUnit
	unitsByTopic map[string][]KnowledgeUnit
	foundational []KnowledgeUnit
	unitSubtopic map[string]string // unit ID → subtopic ID teaching it
	topoOrder    []string          // subtopic IDs in prerequisite order
	topoIndex    map[string]int
}

// New builds a Curriculum from topic definitions plus the foundational
// unit pool. It constructs all indices including the subtopic
// topological order (Kahn's algorithm, deterministic via sorted queues).
// Returns an error if the definitions fail validation.
func New(topics []Topic, foundational []KnowledgeUnit) (*Curriculum, error) {
	if err := validateDefinitions(topics, foundational); err != nil {
		return nil, err
	}

	c := &Curriculum{
		topics:       slices.Clone(topics),
		topicsByID:   make(map[string]*Topic, len(topics)),
		subtopicByID: make(map[string]*Subtopic),
		unitsByID:    make(map[string]*KnowledgeUnit),
		unitsByTopic: make(map[string][]KnowledgeUnit),
		foundational: slices.Clone(foundational),
		unitSubtopic: make(map[string]string),
		topoIndex:    make(map[string]int),
	}

	// The nested slices still share backing arrays with the caller;
	// clone them so the sorting and ID stamping below never touch the
	// caller's definitions.
	for i := range c.topics {
		c.topics[i].Subtopics = slices.Clone(c.topics[i].Subtopics)
		c.topics[i].Units = slices.Clone(c.topics[i].Units)
	}

	sort.Slice(c.topics, func(i, j int) bool {
		return c.topics[i].Sequence < c.topics[j].Sequence
	})

	for i := range c.topics {
		t := &c.topics[i]
		c.topicsByID[t.ID] = t

		sort.Slice(t.Subtopics, func(a, b int) bool {
			return t.Subtopics[a].Sequence < t.Subtopics[b].Sequence
		})
		for j := range t.Subtopics {
			st := t.Subtopics[j]
			st.TopicID = t.ID
			t.Subtopics[j] = st
			c.subtopics = append(c.subtopics, st)
		}

		for j := range t.Units {
			u := t.Units[j]
			u.TopicID = t.ID
			t.Units[j] = u
			c.unitsByTopic[t.ID] = append(c.unitsByTopic[t.ID], u)
		}
	}

	for i := range c.subtopics {
		c.subtopicByID[c.subtopics[i].ID] = &c.subtopics[i]
		for _, uid := range c.subtopics[i].UnitIDs {
			c.unitSubtopic[uid] = c.subtopics[i].ID
		}
	}
	for _, t := range c.topics {
		for i := range t.Units {
			c.unitsByID[t.Units[i].ID] = &t.Units[i]
		}
	}
	for i := range c.foundational {
		c.foundational[i].Foundational = true
		c.unitsByID[c.foundational[i].ID] = &c.foundational[i]
	}

	c.buildTopoOrder()
	return c, nil
}

// buildTopoOrder computes the subtopic prerequisite order using
// Kahn's algorithm with sorted queues for determinism.
func (c *Curriculum) buildTopoOrder() {
	inDegree := make(map[string]int, len(c.subtopics))
	dependents := make(map[string][]string)

	for _, st := range c.subtopics {
		inDegree[st.ID] = len(st.Prerequisites)
		for _, p := range st.Prerequisites {
			dependents[p] = append(dependents[p], st.ID)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		c.topoOrder = append(c.topoOrder, id)

		deps := slices.Clone(dependents[id])
		sort.Strings(deps)
		for _, dep := range deps {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	for i, id := range c.topoOrder {
		c.topoIndex[id] = i
	}
}

// Topic returns a topic by ID.
func (c *Curriculum) Topic(id string) (Topic, error) {
	t, ok := c.topicsByID[id]
	if !ok {
		return Topic{}, fmt.Errorf("topic not found: %q", id)
	}
	return *t, nil
}

// Subtopic returns a subtopic by ID.
func (c *Curriculum) Subtopic(id string) (Subtopic, error) {
	st, ok := c.subtopicByID[id]
	if !ok {
		return Subtopic{}, fmt.Errorf("subtopic not found: %q", id)
	}
	return *st, nil
}

// Unit returns a knowledge unit by ID.
func (c *Curriculum) Unit(id string) (KnowledgeUnit, error) {
	u, ok := c.unitsByID[id]
	if !ok {
		return KnowledgeUnit{}, fmt.Errorf("knowledge unit not found: %q", id)
	}
	return *u, nil
}

// Topics returns all topics in sequence order.
func (c *Curriculum) Topics() []Topic {
	return slices.Clone(c.topics)
}

// TopicUnits returns the units owned by a topic (not the foundational pool).
func (c *Curriculum) TopicUnits(topicID string) []KnowledgeUnit {
	return slices.Clone(c.unitsByTopic[topicID])
}

// FoundationalUnits returns the shared unit pool available to all topics.
func (c *Curriculum) FoundationalUnits() []KnowledgeUnit {
	return slices.Clone(c.foundational)
}

// AllowedUnits returns the set of unit IDs a question on the given
// topic may cite: the topic's own units plus the foundational pool.
func (c *Curriculum) AllowedUnits(topicID string) map[string]bool {
	allowed := make(map[string]bool, len(c.unitsByTopic[topicID])+len(c.foundational))
	for _, u := range c.unitsByTopic[topicID] {
		allowed[u.ID] = true
	}
	for _, u := range c.foundational {
		allowed[u.ID] = true
	}
	return allowed
}

// SubtopicsInOrder returns all subtopic IDs in prerequisite
// (topological) order.
func (c *Curriculum) SubtopicsInOrder() []string {
	return slices.Clone(c.topoOrder)
}

// SubtopicsForTopic returns the topic's subtopics in sequence order.
func (c *Curriculum) SubtopicsForTopic(topicID string) []Subtopic {
	t, ok := c.topicsByID[topicID]
	if !ok {
		return nil
	}
	return slices.Clone(t.Subtopics)
}

// PrerequisitesResolved reports whether every prerequisite of the
// given subtopic is in the mastered set.
func (c *Curriculum) PrerequisitesResolved(subtopicID string, mastered map[string]bool) bool {
	st, ok := c.subtopicByID[subtopicID]
	if !ok {
		return false
	}
	for _, p := range st.Prerequisites {
		if !mastered[p] {
			return false
		}
	}
	return true
}

// UnitSubtopic returns the subtopic that teaches the given unit.
// Foundational pool units are not taught by any subtopic.
func (c *Curriculum) UnitSubtopic(unitID string) (string, bool) {
	st, ok := c.unitSubtopic[unitID]
	return st, ok
}

// SubtopicOrderIndex returns the position of a subtopic in the
// topological order, or -1 if unknown.
func (c *Curriculum) SubtopicOrderIndex(subtopicID string) int {
	if i, ok := c.topoIndex[subtopicID]; ok {
		return i
	}
	return -1
}
