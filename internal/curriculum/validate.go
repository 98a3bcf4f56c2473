package curriculum

import (
	"fmt"
	"strings"
)

// validateDefinitions performs all structural checks on the curriculum
// definitions. Returns a combined error describing all problems found,
// or nil if valid.
func validateDefinitions(topics []Topic, foundational []KnowledgeUnit) error {
	var errs []string

	topicIDs := make(map[string]bool, len(topics))
	subtopicIDs := make(map[string]bool)
	unitIDs := make(map[string]bool)
	unitCodes := make(map[string]bool)

	for _, t := range topics {
		if t.ID == "" {
			errs = append(errs, "topic with empty ID")
			continue
		}
		if topicIDs[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate topic ID: %q", t.ID))
		}
		topicIDs[t.ID] = true

		if len(t.Subtopics) == 0 {
			errs = append(errs, fmt.Sprintf("topic %q has no subtopics", t.ID))
		}

		for _, st := range t.Subtopics {
			if st.ID == "" {
				errs = append(errs, fmt.Sprintf("topic %q has a subtopic with empty ID", t.ID))
				continue
			}
			if subtopicIDs[st.ID] {
				errs = append(errs, fmt.Sprintf("duplicate subtopic ID: %q", st.ID))
			}
			subtopicIDs[st.ID] = true
		}

		for _, u := range t.Units {
			errs = append(errs, checkUnit(u, unitIDs, unitCodes)...)
		}
	}

	for _, u := range foundational {
		errs = append(errs, checkUnit(u, unitIDs, unitCodes)...)
	}

	// Subtopic unit references must resolve.
	for _, t := range topics {
		for _, st := range t.Subtopics {
			for _, uid := range st.UnitIDs {
				if !unitIDs[uid] {
					errs = append(errs, fmt.Sprintf("subtopic %q references nonexistent unit %q", st.ID, uid))
				}
			}
		}
	}

	// Prerequisite references must resolve, and the prerequisite
	// graph must be acyclic (Kahn's algorithm).
	inDegree := make(map[string]int)
	adjList := make(map[string][]string)
	var all []Subtopic
	for _, t := range topics {
		all = append(all, t.Subtopics...)
	}
	for _, st := range all {
		inDegree[st.ID] = len(st.Prerequisites)
		for _, p := range st.Prerequisites {
			if !subtopicIDs[p] {
				errs = append(errs, fmt.Sprintf("subtopic %q references nonexistent prerequisite %q", st.ID, p))
			}
			adjList[p] = append(adjList[p], st.ID)
		}
	}

	var queue []string
	for _, st := range all {
		if inDegree[st.ID] == 0 {
			queue = append(queue, st.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range adjList[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited < len(all) {
		var cycleNodes []string
		for _, st := range all {
			if inDegree[st.ID] > 0 {
				cycleNodes = append(cycleNodes, st.ID)
			}
		}
		errs = append(errs, fmt.Sprintf("prerequisite cycle involving subtopics: %s", strings.Join(cycleNodes, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("curriculum validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func checkUnit(u KnowledgeUnit, ids, codes map[string]bool) []string {
	var errs []string
	if u.ID == "" {
		return []string{"knowledge unit with empty ID"}
	}
	if ids[u.ID] {
		errs = append(errs, fmt.Sprintf("duplicate unit ID: %q", u.ID))
	}
	ids[u.ID] = true
	if u.Code == "" {
		errs = append(errs, fmt.Sprintf("unit %q has empty code", u.ID))
	} else {
		if codes[u.Code] {
			errs = append(errs, fmt.Sprintf("duplicate unit code: %q", u.Code))
		}
		codes[u.Code] = true
	}
	return errs
}
