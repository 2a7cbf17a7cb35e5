package importer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ImportSchema is the top-level structure of a campaign import file. Both
// YAML and JSON documents are accepted.
type ImportSchema struct {
	Campaign CampaignImport  `yaml:"campaign"`
	Projects []ProjectImport `yaml:"projects"`
	Tasks    []TaskImport    `yaml:"tasks"`
}

// CampaignImport defines the campaign-level fields in the import file.
// A campaign has no own budget; its total is derived from its projects.
type CampaignImport struct {
	Name    string `yaml:"name"`
	Segment string `yaml:"segment,omitempty"`
	State   string `yaml:"state,omitempty"`
}

// ProjectImport defines a project in the import file. Ref is a file-local
// handle tasks use to name their project.
type ProjectImport struct {
	Ref     string `yaml:"ref"`
	Name    string `yaml:"name"`
	Segment string `yaml:"segment,omitempty"`
	State   string `yaml:"state,omitempty"`
	Budget  *int64 `yaml:"budget,omitempty"`
}

// TaskImport defines a task in the import file.
type TaskImport struct {
	Ref        string `yaml:"ref"`
	ProjectRef string `yaml:"project_ref"`
	Name       string `yaml:"name"`
	Segment    string `yaml:"segment,omitempty"`
	State      string `yaml:"state,omitempty"`
	Budget     *int64 `yaml:"budget,omitempty"`
}

// LoadImportSchema reads and parses a campaign import file.
func LoadImportSchema(path string) (*ImportSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseImportSchema(data)
}

// ParseImportSchema parses an import document.
func ParseImportSchema(data []byte) (*ImportSchema, error) {
	var schema ImportSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	return &schema, nil
}
