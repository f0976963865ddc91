// Package catalog loads the content taxonomy and the items shown on the
// scanner board from YAML.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"veritas/internal/scan/models"
	id "veritas/pkg/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// Taxonomy lists the labels items may use.
type Taxonomy struct {
	Professions  []string `yaml:"professions"`
	ContentTypes []string `yaml:"content_types"`
	Platforms    []string `yaml:"platforms"`
}

// Expectation is the canned outcome used by the offline demo analyzer.
type Expectation struct {
	Status             models.VerificationStatus `yaml:"status"`
	AlertType          models.AlertType          `yaml:"alert_type"`
	AlertMessage       string                    `yaml:"alert_message"`
	Confidence         int                       `yaml:"confidence"`
	DeepfakeDetected   bool                      `yaml:"deepfake_detected"`
	CredentialVerified bool                      `yaml:"credential_verified"`
}

// Item is one catalog entry.
type Item struct {
	ID          string       `yaml:"id"`
	Username    string       `yaml:"username"`
	Bio         string       `yaml:"bio"`
	ContentType string       `yaml:"content_type"`
	Profession  string       `yaml:"profession"`
	Platform    string       `yaml:"platform"`
	ImageURL    string       `yaml:"image_url"`
	Expected    *Expectation `yaml:"expected"`
}

// Catalog is the parsed, validated document.
type Catalog struct {
	Taxonomy Taxonomy `yaml:"taxonomy"`
	Items    []Item   `yaml:"items"`
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() {
	for i := range c.Items {
		it := &c.Items[i]
		it.ID = strings.TrimSpace(it.ID)
		it.Username = strings.TrimPrefix(strings.TrimSpace(it.Username), "@")
		if it.ID == "" {
			it.ID = it.Username
		}
		if it.Profession == "" {
			it.Profession = "unknown"
		}
		if it.Platform == "" && len(c.Taxonomy.Platforms) > 0 {
			it.Platform = c.Taxonomy.Platforms[0]
		}
	}
}

// Validate checks that item ids are unique and every label is in the taxonomy.
func (c *Catalog) Validate() error {
	if len(c.Items) == 0 {
		return fmt.Errorf("catalog has no items")
	}
	seen := make(map[string]struct{}, len(c.Items))
	for _, it := range c.Items {
		if it.Username == "" {
			return fmt.Errorf("catalog item %q: username is required", it.ID)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("catalog item %q: duplicate id", it.ID)
		}
		seen[it.ID] = struct{}{}
		if !contains(c.Taxonomy.ContentTypes, it.ContentType) {
			return fmt.Errorf("catalog item %q: unknown content type %q", it.ID, it.ContentType)
		}
		if !contains(c.Taxonomy.Professions, it.Profession) {
			return fmt.Errorf("catalog item %q: unknown profession %q", it.ID, it.Profession)
		}
		if len(c.Taxonomy.Platforms) > 0 && !contains(c.Taxonomy.Platforms, it.Platform) {
			return fmt.Errorf("catalog item %q: unknown platform %q", it.ID, it.Platform)
		}
		if e := it.Expected; e != nil {
			if !e.Status.IsTerminal() {
				return fmt.Errorf("catalog item %q: expected status must be verified, alert or unverified", it.ID)
			}
			if e.Confidence < 0 || e.Confidence > 100 {
				return fmt.Errorf("catalog item %q: confidence out of range", it.ID)
			}
		}
	}
	return nil
}

// DisplayItems returns the items in catalog order.
func (c *Catalog) DisplayItems() []models.DisplayItem {
	out := make([]models.DisplayItem, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, models.DisplayItem{
			ID:          id.ItemID(it.ID),
			Username:    it.Username,
			Bio:         it.Bio,
			ContentType: it.ContentType,
			Profession:  it.Profession,
			Platform:    it.Platform,
			ImageURL:    it.ImageURL,
		})
	}
	return out
}

// Expected returns the canned outcome for the item with the given username.
func (c *Catalog) Expected(username string) (Expectation, bool) {
	for _, it := range c.Items {
		if strings.EqualFold(it.Username, username) && it.Expected != nil {
			return *it.Expected, true
		}
	}
	return Expectation{}, false
}

func contains(values []string, v string) bool {
	return slices.ContainsFunc(values, func(s string) bool { return strings.EqualFold(s, v) })
}
