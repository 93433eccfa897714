package valueobjects

import (
	"fmt"
	"strings"
)

const (
	MinRating = 0
	MaxRating = 5
)

// Rating is a self-assessed proficiency on the 0..5 scale.
// Stored values outside the scale are tolerated and clamped when consumed.
type Rating int

// NewRating validates a rating coming from user input
func NewRating(v int) (Rating, error) {
	if v < MinRating || v > MaxRating {
		return 0, fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, v)
	}
	return Rating(v), nil
}

// Clamped returns the rating forced into [0,5]
func (r Rating) Clamped() float64 {
	v := float64(r)
	if v < MinRating {
		return MinRating
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}

// SkillStatus tracks where a skill is on the learning path
type SkillStatus string

const (
	StatusWishlist SkillStatus = "wishlist"
	StatusLearning SkillStatus = "learning"
	StatusMastered SkillStatus = "mastered"
)

// ParseSkillStatus accepts the lowercase status names
func ParseSkillStatus(s string) (SkillStatus, error) {
	switch SkillStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusWishlist:
		return StatusWishlist, nil
	case StatusLearning:
		return StatusLearning, nil
	case StatusMastered:
		return StatusMastered, nil
	default:
		return "", fmt.Errorf("unknown skill status %q", s)
	}
}

func (s SkillStatus) String() string {
	return string(s)
}
