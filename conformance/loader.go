package conformance

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// TestPath is the suite directory relative to this package.
const TestPath = "testdata"

// LoadedTest represents a test with its source file path
type LoadedTest struct {
	File  string
	Suite *TestSuite
	Test  TestCase
}

// LoadDir walks dir and loads every .yaml suite in it, in path order.
func LoadDir(dir string) ([]LoadedTest, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".yaml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var loaded []LoadedTest
	for _, path := range paths {
		suite, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		relPath, _ := filepath.Rel(dir, path)
		for _, test := range suite.Tests {
			loaded = append(loaded, LoadedTest{
				File:  filepath.ToSlash(relPath),
				Suite: suite,
				Test:  test,
			})
		}
	}
	return loaded, nil
}

// LoadFile parses a single suite. Unknown keys are rejected so that a
// misspelled expectation cannot silently pass.
func LoadFile(path string) (*TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suite, nil
}

// Parse decodes one YAML suite.
func Parse(data []byte) (*TestSuite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var suite TestSuite
	if err := dec.Decode(&suite); err != nil {
		return nil, err
	}
	for i, tc := range suite.Tests {
		if tc.Name == "" {
			return nil, fmt.Errorf("test %d in suite %q has no name", i, suite.Name)
		}
	}
	return &suite, nil
}
