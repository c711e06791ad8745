package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marma/whistler/internal/model"
)

// SelectorCatalog supplies the node-selector choices the menu UI offers
// when a user creates or edits a template; the core never interprets
// these beyond passing them through to the UI collaborator.
type SelectorCatalog interface {
	Selectors() []model.Selector
}

// VolumeCatalog supplies the named, mountable volumes the menu UI offers
// when a user edits a template's Volumes map.
type VolumeCatalog interface {
	Volumes() []model.Volume
}

type selectorFile struct {
	Selectors []struct {
		Name   string   `yaml:"name"`
		Key    string   `yaml:"key"`
		Values []string `yaml:"values"`
	} `yaml:"selectors"`
}

// YAMLSelectorCatalog loads /etc/whistler-config/selectors.yaml.
type YAMLSelectorCatalog struct {
	selectors []model.Selector
}

func LoadSelectorCatalog(path string) (*YAMLSelectorCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading selector catalog %s: %w", path, err)
	}
	var doc selectorFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing selector catalog %s: %w", path, err)
	}
	cat := &YAMLSelectorCatalog{}
	for _, s := range doc.Selectors {
		cat.selectors = append(cat.selectors, model.Selector{Name: s.Name, Key: s.Key, Values: s.Values})
	}
	return cat, nil
}

func (c *YAMLSelectorCatalog) Selectors() []model.Selector { return c.selectors }

type volumeFile struct {
	Volumes []struct {
		Name      string `yaml:"name"`
		MountPath string `yaml:"mountPath"`
	} `yaml:"volumes"`
}

// YAMLVolumeCatalog loads /etc/whistler-config/volumes.yaml.
type YAMLVolumeCatalog struct {
	volumes []model.Volume
}

func LoadVolumeCatalog(path string) (*YAMLVolumeCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading volume catalog %s: %w", path, err)
	}
	var doc volumeFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing volume catalog %s: %w", path, err)
	}
	cat := &YAMLVolumeCatalog{}
	for _, v := range doc.Volumes {
		cat.volumes = append(cat.volumes, model.Volume{Name: v.Name, MountPath: v.MountPath})
	}
	return cat, nil
}

func (c *YAMLVolumeCatalog) Volumes() []model.Volume { return c.volumes }
