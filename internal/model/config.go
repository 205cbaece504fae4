package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Configuration errors. Either one disables remote publishing for the run.
var (
	ErrMissingCredentials = errors.New("host, bearer token and project id are required")
	ErrMissingSuite       = errors.New("either a suite id or a parent type, parent id and suite name are required")
)

// Default execution log states.
const (
	DefaultStatePassed  = "PASS"
	DefaultStateFailed  = "FAIL"
	DefaultStatePending = "PENDING"
)

// ResolutionStrategy selects how the destination suite is obtained.
type ResolutionStrategy int

const (
	// StrategyNone means no suite can be resolved from the configuration.
	StrategyNone ResolutionStrategy = iota
	// StrategyExistingSuite lists the test runs of a configured suite.
	StrategyExistingSuite
	// StrategyNewSuite creates a fresh suite under a configured parent.
	StrategyNewSuite
)

func (s ResolutionStrategy) String() string {
	switch s {
	case StrategyExistingSuite:
		return "existing-suite"
	case StrategyNewSuite:
		return "new-suite"
	case StrategyNone:
	}

	return "none"
}

// Config is built once per engine and shared by reference with every component.
type Config struct {
	Host        string
	BearerToken string
	ProjectID   string

	SuiteID    string
	ParentType string
	ParentID   string
	SuiteName  string

	BuildURL     string
	StatePassed  string
	StateFailed  string
	StatePending string

	CreateTestRuns bool
	EnableLogs     bool
	HideWarning    bool
	HideResultURL  bool

	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Retries   int
}

// DefaultConfig returns a Config with every optional setting at its default.
func DefaultConfig() Config {
	return Config{
		StatePassed:    DefaultStatePassed,
		StateFailed:    DefaultStateFailed,
		StatePending:   DefaultStatePending,
		CreateTestRuns: true,
		Timeout:        30 * time.Second,
		Retries:        2,
	}
}

// Strategy returns the suite resolution strategy selected by the configuration.
// A suite id always wins over a parent.
func (c *Config) Strategy() ResolutionStrategy {
	if strings.TrimSpace(c.SuiteID) != "" {
		return StrategyExistingSuite
	}

	if strings.TrimSpace(c.ParentType) != "" && strings.TrimSpace(c.ParentID) != "" && strings.TrimSpace(c.SuiteName) != "" {
		return StrategyNewSuite
	}

	return StrategyNone
}

// Validate reports whether the configuration allows any remote activity.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.BearerToken) == "" || strings.TrimSpace(c.ProjectID) == "" {
		return ErrMissingCredentials
	}

	if c.Strategy() == StrategyNone {
		return ErrMissingSuite
	}

	return nil
}

// StateFor maps a record status to the execution log state string.
func (c *Config) StateFor(status Status) string {
	switch status {
	case StatusPassed:
		return valueOr(c.StatePassed, DefaultStatePassed)
	case StatusFailed:
		return valueOr(c.StateFailed, DefaultStateFailed)
	case StatusPending, StatusUnset:
	}

	return valueOr(c.StatePending, DefaultStatePending)
}

// ReportURL returns the web location of a suite's test execution page.
func (c *Config) ReportURL(suiteID string) string {
	return fmt.Sprintf("https://%s/p/%s/portal/project#tab=testexecution&object=2&id=%s", c.Host, c.ProjectID, suiteID)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
