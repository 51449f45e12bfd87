// Package catalog manages the teaching-subject hierarchy: subjects contain
// year groups, year groups contain topics.
package catalog

import "time"

// Subject is a top-level area of mathematics teaching.
type Subject struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	IconType     string `json:"iconType"`
	ColorTheme   string `json:"colorTheme"`
	Category     string `json:"category"`
	DisplayOrder int    `json:"displayOrder"`
	TotalTopics  int    `json:"totalTopics"`
	IsActive     bool   `json:"isActive"`
	CreatedBy    int64  `json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// YearGroups is populated on detail reads only.
	YearGroups []YearGroup `json:"yearGroups,omitempty"`
}

// YearGroup is a school-year slice of a subject.
type YearGroup struct {
	ID           int64  `json:"id"`
	SubjectID    int64  `json:"subject"`
	Name         string `json:"name"`
	YearLevel    int    `json:"yearLevel"`
	AgeRange     string `json:"ageRange"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"displayOrder"`
	TopicCount   int    `json:"topicCount"`
	IsActive     bool   `json:"isActive"`
	CreatedBy    int64  `json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Topic is a teachable unit within a year group.
type Topic struct {
	ID                 int64    `json:"id"`
	YearGroupID        int64    `json:"yearGroup"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Difficulty         string   `json:"difficulty"`
	Strand             string   `json:"strand"`
	LearningObjectives []string `json:"learningObjectives"`
	EstimatedDuration  int      `json:"estimatedDuration"`
	ActivityCount      int      `json:"activityCount"`
	ViewCount          int      `json:"viewCount"`
	IsActive           bool     `json:"isActive"`
	CreatedBy          int64    `json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubjectCategories is the closed subject categorisation set.
var SubjectCategories = []string{"Primary", "Secondary", "Advanced"}

// IconTypes lists the icon identifiers the frontend recognises.
var IconTypes = []string{
	"calculator",
	"geometry",
	"statistics",
	"algebra",
	"calculus",
	"number-theory",
	"applied-maths",
	"reasoning",
}

// Difficulties is the closed topic difficulty scale.
var Difficulties = []string{"Foundation", "Developing", "Proficient", "Advanced"}

// Strands lists the mathematical content strands.
var Strands = []string{
	"Number and Algebra",
	"Measurement and Geometry",
	"Statistics and Probability",
	"Mathematical Reasoning",
	"Problem Solving",
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ValidCategory reports whether c is a recognised subject category.
func ValidCategory(c string) bool { return contains(SubjectCategories, c) }

// ValidIconType reports whether t is a recognised icon identifier.
func ValidIconType(t string) bool { return contains(IconTypes, t) }

// ValidDifficulty reports whether d is on the difficulty scale.
func ValidDifficulty(d string) bool { return contains(Difficulties, d) }

// ValidStrand reports whether s is a recognised content strand.
func ValidStrand(s string) bool { return contains(Strands, s) }
