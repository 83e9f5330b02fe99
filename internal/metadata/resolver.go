// Package metadata derives Azure DevOps identifiers from scenario and
// feature tags. Resolution is a pure function of the tags; no network access
// and no caching.
package metadata

import (
	"strconv"
	"strings"
)

// Tag grammar prefixes, matched case-insensitively.
const (
	tagTestCase  = "@testcase:"
	tagTestPlan  = "@testplan:"
	tagTestSuite = "@testsuite:"
)

// ADOMetadata is the remote mapping derived from tags. It is recomputed per
// call and never cached; tags are immutable for the lifetime of a scenario.
type ADOMetadata struct {
	// TestCaseIDs is the ordered, de-duplicated set of case IDs from scenario
	// tags first, then feature tags.
	TestCaseIDs []int

	// TestCaseID is the deprecated singular form. It is ignored whenever
	// TestCaseIDs is non-empty.
	TestCaseID int

	// PlanID is zero when no plan tag is present.
	PlanID int

	// SuiteID is zero when no suite tag is present.
	SuiteID int
}

// HasMapping reports whether the scenario resolves to at least one test case.
func (m ADOMetadata) HasMapping() bool {
	return len(m.TestCaseIDs) > 0
}

// CaseIDs returns the effective case ID list, falling back to the deprecated
// singular field only when the list is empty.
func (m ADOMetadata) CaseIDs() []int {
	if len(m.TestCaseIDs) > 0 {
		return m.TestCaseIDs
	}
	if m.TestCaseID > 0 {
		return []int{m.TestCaseID}
	}
	return nil
}

// Extract parses scenario and feature tags into ADOMetadata. Scenario tags
// take precedence over feature tags for plan and suite; case IDs from both
// levels are merged with scenario tags first. Malformed numeric parts are
// skipped.
func Extract(scenarioTags, featureTags []string) ADOMetadata {
	meta := ADOMetadata{}

	seen := make(map[int]bool)
	appendCases := func(tags []string) {
		for _, tag := range tags {
			for _, id := range parseCaseTag(tag) {
				if !seen[id] {
					seen[id] = true
					meta.TestCaseIDs = append(meta.TestCaseIDs, id)
				}
			}
		}
	}

	appendCases(scenarioTags)
	appendCases(featureTags)

	// Scenario-level plan/suite win over feature-level.
	meta.PlanID = firstIDTag(scenarioTags, tagTestPlan)
	if meta.PlanID == 0 {
		meta.PlanID = firstIDTag(featureTags, tagTestPlan)
	}

	meta.SuiteID = firstIDTag(scenarioTags, tagTestSuite)
	if meta.SuiteID == 0 {
		meta.SuiteID = firstIDTag(featureTags, tagTestSuite)
	}

	return meta
}

// parseCaseTag extracts case IDs from one tag. The value part may be a comma
// list (@TestCase:419,420).
func parseCaseTag(tag string) []int {
	value, ok := tagValue(tag, tagTestCase)
	if !ok {
		return nil
	}

	var ids []int
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}

	return ids
}

// firstIDTag returns the first valid numeric value for the given tag prefix,
// or zero when none is present.
func firstIDTag(tags []string, prefix string) int {
	for _, tag := range tags {
		value, ok := tagValue(tag, prefix)
		if !ok {
			continue
		}
		if id, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && id > 0 {
			return id
		}
	}
	return 0
}

// tagValue matches tag against a case-insensitive prefix and returns the
// remainder.
func tagValue(tag, prefix string) (string, bool) {
	if len(tag) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(tag[:len(prefix)], prefix) {
		return "", false
	}
	return tag[len(prefix):], true
}
