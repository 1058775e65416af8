package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SelectorSet contains the CSS selectors and paths for one version of the
// knowledge-base web UI. Selector drift after a UI release is fixed by
// shipping a new YAML file, not by editing automation code.
type SelectorSet struct {
	LoginPath     string `yaml:"loginPath"`     // path of the login page
	ImportPath    string `yaml:"importPath"`    // path of the dataset import wizard; %s = dataset id
	UsernameInput string `yaml:"usernameInput"` // login username field
	PasswordInput string `yaml:"passwordInput"` // login password field
	FileInput     string `yaml:"fileInput"`     // wizard file <input type=file>
	NextButton    string `yaml:"nextButton"`    // enabled wizard advance button
	IndexDone     string `yaml:"indexDone"`     // element present once indexing completed
}

// DefaultSelectors matches the knowledge-base UI version this bot is
// currently deployed against.
func DefaultSelectors() SelectorSet {
	return SelectorSet{
		LoginPath:     "/login",
		ImportPath:    "/dataset/detail?datasetId=%s&currentTab=import&source=fileLocal",
		UsernameInput: `input.css-1r9e15p[name="username"]`,
		PasswordInput: `input.css-1r9e15p[name="password"]`,
		FileInput:     `div.css-n92xud input[type="file"]`,
		NextButton:    `button.css-gj65it:not([disabled])`,
		IndexDone:     `table.chakra-table tbody tr:nth-child(2) td:nth-child(5) div.css-c0i2cr`,
	}
}

// LoadSelectors reads a selector set from a YAML file, starting from the
// defaults so partial files only need to name what changed.
func LoadSelectors(path string) (SelectorSet, error) {
	sel := DefaultSelectors()
	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selectors file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("parse selectors file %s: %w", path, err)
	}
	return sel, nil
}
