package entities

import (
	"time"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// Skill is the record behind a leaf node
type Skill struct {
	ID              valueobjects.SkillID     `json:"id"`
	ConceptID       *int64                   `json:"conceptId,omitempty"`
	Title           string                   `json:"title"`
	Rating          valueobjects.Rating      `json:"rating"`
	Status          valueobjects.SkillStatus `json:"status"`
	FirstAchievedAt *time.Time               `json:"firstAchievedAt,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// Group is the record behind a container node
type Group struct {
	ID          valueobjects.GroupID `json:"id"`
	Label       string               `json:"label"`
	Description *string              `json:"description,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// StructureSkill is the part of a skill that shapes the diagram.
type StructureSkill struct {
	ID    valueobjects.SkillID `json:"id"`
	Title string               `json:"title"`
}
