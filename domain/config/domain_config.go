package config

import "fmt"

// DomainConfig holds the configurable limits of a user's forest
type DomainConfig struct {
	// Forest size
	MaxNodesPerForest   int
	MaxEdgesPerForest   int
	MaxChildrenPerGroup int

	// Text limits, counted in runes
	MaxLabelLength       int
	MaxTitleLength       int
	MaxDescriptionLength int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerForest:   5000,
		MaxEdgesPerForest:   20000,
		MaxChildrenPerGroup: 200,

		MaxLabelLength:       120,
		MaxTitleLength:       120,
		MaxDescriptionLength: 1000,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxNodesPerForest = 2000
	config.MaxEdgesPerForest = 8000
	return config
}

// DevelopmentDomainConfig is more permissive so that load scripts fit
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxNodesPerForest = 100000
	config.MaxEdgesPerForest = 500000
	config.MaxChildrenPerGroup = 10000
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks that every limit is usable
func (c *DomainConfig) Validate() error {
	limits := map[string]int{
		"MaxNodesPerForest":    c.MaxNodesPerForest,
		"MaxEdgesPerForest":    c.MaxEdgesPerForest,
		"MaxChildrenPerGroup":  c.MaxChildrenPerGroup,
		"MaxLabelLength":       c.MaxLabelLength,
		"MaxTitleLength":       c.MaxTitleLength,
		"MaxDescriptionLength": c.MaxDescriptionLength,
	}
	for name, v := range limits {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	return nil
}
