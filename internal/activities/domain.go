package activities

import "time"

// Activity statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// ActivityTypes enumerates the accepted activity kinds.
var ActivityTypes = []string{
	"worksheet",
	"interactive",
	"video",
	"game",
	"assessment",
	"investigation",
	"problem_solving",
	"revision",
}

// Difficulties for activities mirror the topic scale, plus Mixed for
// resources spanning ability ranges.
var Difficulties = []string{"Foundation", "Developing", "Proficient", "Advanced", "Mixed"}

// Resource is a supporting link or file attached to an activity.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
}

// Rating is a single user's score for an activity.
type Rating struct {
	ActivityID int64     `json:"-"`
	UserID     int64     `json:"user"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Activity is a teaching resource attached to a topic.
type Activity struct {
	ID              int64      `json:"id"`
	TopicID         int64      `json:"topic"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ActivityType    string     `json:"activityType"`
	Difficulty      string     `json:"difficulty"`
	DurationMinutes int        `json:"durationMinutes"`
	ClassSize       int        `json:"classSize,omitempty"`
	Resources       []Resource `json:"resources"`
	Materials       []string   `json:"materials"`
	Outcomes        []string   `json:"learningOutcomes"`
	Tags            []string   `json:"tags"`
	Status          string     `json:"status"`
	AverageRating   float64    `json:"averageRating"`
	RatingCount     int        `json:"ratingCount"`
	ViewCount       int64      `json:"viewCount"`
	IsActive        bool       `json:"isActive"`
	CreatedBy       int64      `json:"createdBy"`
	CreatorName     string     `json:"creatorName,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ValidActivityType reports whether t is a known activity type.
func ValidActivityType(t string) bool {
	for _, v := range ActivityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ValidDifficulty reports whether d is a known difficulty.
func ValidDifficulty(d string) bool {
	for _, v := range Difficulties {
		if v == d {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusPublished || s == StatusArchived
}

// ValidScore reports whether a rating score is in range.
func ValidScore(score int) bool {
	return score >= 1 && score <= 5
}
