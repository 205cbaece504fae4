package model

// TestCase is the canonical remote definition a test run refers to.
type TestCase struct {
	ID   string
	Name string
}

// ExecutionLog is the automation log submitted for one test run.
type ExecutionLog struct {
	Name              string        `json:"name"`
	BuildURL          string        `json:"build_url,omitempty"`
	AutomationContent string        `json:"automation_content"`
	Note              string        `json:"note"`
	ExeStartDate      string        `json:"exe_start_date"`
	ExeEndDate        string        `json:"exe_end_date"`
	Status            string        `json:"status"`
	TestStepLogs      []TestStepLog `json:"test_step_logs,omitempty"`
}

// TestStepLog is a single step of an execution log.
type TestStepLog struct {
	Description    string `json:"description"`
	ExpectedResult string `json:"expected_result"`
	ActualResult   string `json:"actual_result,omitempty"`
	Status         string `json:"status"`
}
