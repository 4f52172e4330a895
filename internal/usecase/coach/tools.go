package coach

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

var baseHours = map[string]float64{
	"Beginner":     8,
	"Intermediate": 16,
	"Advanced":     24,
}

const defaultBaseHours = 16

var typeMultipliers = map[string]float64{
	"report":       1.0,
	"project":      1.5,
	"essay":        0.8,
	"presentation": 0.7,
	"lab":          1.2,
}

// TimeEstimate splits the expected effort across work phases.
type TimeEstimate struct {
	TotalHours      float64 `json:"total_hours"`
	ResearchHours   float64 `json:"research_hours"`
	WritingHours    float64 `json:"writing_hours"`
	ReviewHours     float64 `json:"review_hours"`
	FormattingHours float64 `json:"formatting_hours"`
}

// EstimateTime sizes an assignment from its difficulty and type. Unknown
// difficulties count as Intermediate and unknown types as reports.
func EstimateTime(difficulty, assignmentType string) TimeEstimate {
	base, ok := baseHours[difficulty]
	if !ok {
		base = defaultBaseHours
	}
	mult, ok := typeMultipliers[strings.ToLower(assignmentType)]
	if !ok {
		mult = 1.0
	}
	total := base * mult
	return TimeEstimate{
		TotalHours:      round2(total),
		ResearchHours:   round2(total * 0.3),
		WritingHours:    round2(total * 0.4),
		ReviewHours:     round2(total * 0.2),
		FormattingHours: round2(total * 0.1),
	}
}

// Step is one item of a task plan.
type Step struct {
	Step           int     `json:"step"`
	Task           string  `json:"task"`
	EstimatedHours float64 `json:"estimated_hours"`
	Priority       string  `json:"priority"`
}

// BreakDown plans the next steps for the phase implied by progress.
func BreakDown(progress, totalHours float64) []Step {
	switch {
	case progress < 0.3:
		return []Step{
			{1, "Research and gather resources", round2(totalHours * 0.3), "high"},
			{2, "Create outline and structure", round2(totalHours * 0.15), "high"},
			{3, "Write introduction and background", round2(totalHours * 0.2), "medium"},
		}
	case progress < 0.6:
		return []Step{
			{1, "Complete main content sections", round2(totalHours * 0.3), "high"},
			{2, "Review and revise content", round2(totalHours * 0.2), "high"},
			{3, "Add supporting evidence and examples", round2(totalHours * 0.15), "medium"},
		}
	default:
		return []Step{
			{1, "Final review and proofreading", round2(totalHours * 0.2), "high"},
			{2, "Format document and add citations", round2(totalHours * 0.1), "medium"},
			{3, "Submit assignment", 0.5, "high"},
		}
	}
}

// Resource is a suggested study resource.
type Resource struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

const resourceBase = "https://example.com"

// SuggestResources picks resources matching a learning style. Styles other
// than visual, auditory and reading/writing get hands-on material.
func SuggestResources(style, subject, topic string) []Resource {
	link := func(section, name string) string {
		return resourceBase + "/" + section + "/" + url.PathEscape(strings.ToLower(name))
	}

	switch strings.ToLower(style) {
	case "visual":
		return []Resource{
			{"video", subject + " Visual Guide: " + topic, link("videos", subject) + "/" + url.PathEscape(strings.ToLower(topic)), "Video tutorial with diagrams and visual explanations"},
			{"diagram", topic + " Architecture Diagrams", link("diagrams", topic), "Visual diagrams and flowcharts"},
			{"infographic", subject + " Quick Reference", link("infographics", subject), "Visual summary and key concepts"},
		}
	case "auditory":
		return []Resource{
			{"podcast", subject + " Podcast Series", link("podcasts", subject), "Audio lectures and discussions"},
			{"audio_book", topic + " Audio Guide", link("audio", topic), "Narrated explanations"},
		}
	case "reading", "writing":
		return []Resource{
			{"article", subject + " Documentation", link("docs", subject), "Comprehensive written documentation"},
			{"pdf", topic + " Research Paper", link("papers", topic) + ".pdf", "Academic papers and research"},
			{"book", subject + " Textbook Chapter", link("books", subject), "Detailed written explanations"},
		}
	default:
		return []Resource{
			{"interactive", topic + " Hands-on Lab", link("labs", topic), "Interactive exercises and labs"},
			{"tutorial", subject + " Step-by-step Guide", link("tutorials", subject), "Practical walkthrough"},
			{"workshop", topic + " Workshop", link("workshops", topic), "Hands-on practice session"},
		}
	}
}

// Urgency levels.
const (
	UrgencyUnknown  = "unknown"
	UrgencyLow      = "low"
	UrgencyModerate = "moderate"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
	UrgencyOverdue  = "overdue"
)

// Urgency describes how pressing a deadline is relative to progress.
type Urgency struct {
	DaysRemaining    *int    `json:"days_remaining"`
	Level            string  `json:"urgency"`
	Score            int     `json:"urgency_level"`
	OnTrack          bool    `json:"on_track"`
	ExpectedProgress float64 `json:"expected_progress"`
	CurrentProgress  float64 `json:"current_progress"`
}

// AssessUrgency compares progress with a YYYY-MM-DD deadline as of now.
// Work is considered on track when progress reaches 80% of the linear
// expectation over a 30-day window.
func AssessUrgency(deadline string, progress float64, now time.Time) Urgency {
	due, err := time.ParseInLocation(time.DateOnly, deadline, now.Location())
	if err != nil {
		return Urgency{Level: UrgencyUnknown, CurrentProgress: progress}
	}

	days := int(math.Floor(due.Sub(now).Hours() / 24))

	u := Urgency{DaysRemaining: &days, CurrentProgress: progress}
	switch {
	case days < 0:
		u.Level, u.Score = UrgencyOverdue, 5
	case days < 3:
		u.Level, u.Score = UrgencyCritical, 4
	case days < 7:
		u.Level, u.Score = UrgencyHigh, 3
	case days < 14:
		u.Level, u.Score = UrgencyModerate, 2
	default:
		u.Level, u.Score = UrgencyLow, 1
	}

	expected := 1.0
	if days > 0 {
		expected = 1 - float64(days)/30
	}
	u.OnTrack = progress >= expected*0.8
	u.ExpectedProgress = round2(max(0, min(1, expected)))
	return u
}

func summarize(a Assignment) string {
	desc := truncate(strings.ToLower(a.Description), 150)
	subject := a.Subject
	if subject == "" {
		subject = "course"
	}
	return fmt.Sprintf("This %s assignment titled '%s' requires you to %s... "+
		"Focus on understanding the core concepts and applying them systematically to complete the task successfully.",
		subject, a.Title, desc)
}

func feedback(a Assignment, u *Urgency) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on your current progress (%d%%), ", int(a.Profile.Progress*100))

	if u != nil && u.DaysRemaining != nil {
		days := *u.DaysRemaining
		switch u.Level {
		case UrgencyOverdue:
			fmt.Fprintf(&sb, "the deadline passed %d days ago. Contact your instructor and submit what you have as soon as possible. ", -days)
		case UrgencyCritical:
			fmt.Fprintf(&sb, "you have %d days remaining. Focus on completing high-priority tasks immediately. ", days)
		case UrgencyHigh:
			fmt.Fprintf(&sb, "you have %d days remaining. Maintain steady progress on your tasks. ", days)
		default:
			fmt.Fprintf(&sb, "you have %d days remaining. Continue working at your current pace. ", days)
		}
	}

	if containsFold(a.Profile.Weaknesses, "time management") {
		sb.WriteString("Set specific deadlines for each task to improve time management. ")
	}
	if len(a.Profile.Skills) > 0 {
		fmt.Fprintf(&sb, "Your strengths in %s will help you succeed. ", strings.Join(a.Profile.Skills, ", "))
	}
	return strings.TrimSpace(sb.String())
}

func motivation(a Assignment) string {
	switch p := a.Profile.Progress; {
	case p < 0.3:
		return fmt.Sprintf("You're just getting started with '%s'. Every step forward counts - keep building momentum!", a.Title)
	case p < 0.6:
		return fmt.Sprintf("You're making great progress on '%s'! You're halfway there - keep pushing forward!", a.Title)
	default:
		return fmt.Sprintf("You're in the final stretch for '%s'! You've come so far - finish strong!", a.Title)
	}
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), want) {
			return true
		}
	}
	return false
}

// truncate shortens s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	end := 0
	for i := range s {
		if i > maxLen {
			break
		}
		end = i
	}
	return s[:end]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
