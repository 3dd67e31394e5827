package conformance

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tests       []TestCase `yaml:"tests"`
}

// TestCase represents a single program within a suite
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        interface{} `yaml:"skip,omitempty"` // bool or string
	Source      string      `yaml:"source"`
	Expect      Expectation `yaml:"expect"`
}

// Expectation defines what a test program must produce. A case that lists
// diagnostics must fail to compile; otherwise it must compile and run.
type Expectation struct {
	Stdout       *string  `yaml:"stdout,omitempty"`        // exact match
	Diagnostics  []string `yaml:"diagnostics,omitempty"`   // one substring per diagnostic, in order
	RuntimeError string   `yaml:"runtime_error,omitempty"` // substring of the runtime error
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		return true, v
	}
	return false, ""
}
