package multiagent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
)

// fileAgent is one entry of a registry file. The address key is "url".
type fileAgent struct {
	ID           string   `json:"id"           yaml:"id"`
	Name         string   `json:"name"         yaml:"name"`
	URL          string   `json:"url"          yaml:"url"`
	Description  string   `json:"description"  yaml:"description"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Keywords     []string `json:"keywords"     yaml:"keywords"`
	Status       string   `json:"status"       yaml:"status"`
}

// LoadFile reads agent descriptors from a JSON or YAML registry file holding
// a list of agents. The format is chosen by extension; anything other than
// .yaml or .yml is parsed as JSON.
func LoadFile(path string) ([]domain.AgentDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var entries []fileAgent
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}

	descs := make([]domain.AgentDescriptor, 0, len(entries))
	for i, e := range entries {
		if e.ID == "" || e.URL == "" {
			return nil, fmt.Errorf("registry file %s: entry %d: id and url are required", path, i)
		}
		health := domain.HealthUnknown
		if e.Status != "" {
			health = domain.ParseHealthState(e.Status)
		}
		descs = append(descs, domain.AgentDescriptor{
			ID:           e.ID,
			Name:         e.Name,
			Address:      strings.TrimRight(e.URL, "/"),
			Description:  e.Description,
			Capabilities: e.Capabilities,
			Keywords:     e.Keywords,
			Health:       health,
		})
	}
	return descs, nil
}

// DescriptorsFromConfig converts inline config entries into descriptors.
func DescriptorsFromConfig(entries []config.AgentEntry) []domain.AgentDescriptor {
	descs := make([]domain.AgentDescriptor, 0, len(entries))
	for _, e := range entries {
		descs = append(descs, domain.AgentDescriptor{
			ID:           e.ID,
			Name:         e.Name,
			Address:      strings.TrimRight(e.URL, "/"),
			Description:  e.Description,
			Capabilities: e.Capabilities,
			Keywords:     e.Keywords,
			Health:       domain.HealthUnknown,
		})
	}
	return descs
}
