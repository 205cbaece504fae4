// Package domain implements the test-result synchronization engine: it tracks
// lifecycle events of externally identified tests and publishes their outcome
// to the test-management system once the run completes.
package domain

import "regexp"

var testCaseIDPattern = regexp.MustCompile(`@qTest\[(.*?)\]`)

// ExtractTestCaseID returns the id embedded in a title as @qTest[<id>].
// Titles without a (non-empty) marker are outside the engine's scope.
func ExtractTestCaseID(title string) (string, bool) {
	match := testCaseIDPattern.FindStringSubmatch(title)
	if match == nil || match[1] == "" {
		return "", false
	}

	return match[1], true
}
