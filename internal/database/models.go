package database

import "time"

// SubscriptionStatus is the plan code stored on a profile.
type SubscriptionStatus string

const (
	StatusNone       SubscriptionStatus = "0"
	StatusCoaching   SubscriptionStatus = "1"
	StatusHumanCoach SubscriptionStatus = "2"
)

var SubscriptionNames = map[SubscriptionStatus]string{
	StatusNone:       "No plan",
	StatusCoaching:   "AI Coaching",
	StatusHumanCoach: "AI Coaching + Human Coach",
}

func (s SubscriptionStatus) Valid() bool {
	_, ok := SubscriptionNames[s]
	return ok
}

// Paid reports whether the status grants access to coaching features.
func (s SubscriptionStatus) Paid() bool {
	return s == StatusCoaching || s == StatusHumanCoach
}

type Profile struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	FullName           string             `json:"full_name"`
	PasswordHash       string             `json:"-"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	CustomerID         string             `json:"customer_id,omitempty"`
	TelegramChatID     int64              `json:"telegram_chat_id,omitempty"`
	LinkCode           string             `json:"link_code"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type AuthSession struct {
	Token     string    `json:"token"`
	ProfileID string    `json:"profile_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordReset struct {
	Token     string
	ProfileID string
	ExpiresAt time.Time
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalArchived  GoalStatus = "archived"
)

type Goal struct {
	ID              string     `json:"id"`
	ProfileID       string     `json:"profile_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	TargetDate      string     `json:"target_date,omitempty"`
	Status          GoalStatus `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	Steps           []Step     `json:"steps,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Step struct {
	ID              string     `json:"id"`
	GoalID          string     `json:"goal_id"`
	Position        int        `json:"position"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Deadline        string     `json:"deadline,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Session struct {
	ID              string        `json:"id"`
	ProfileID       string        `json:"profile_id"`
	GoalID          string        `json:"goal_id,omitempty"`
	StepID          string        `json:"step_id,omitempty"`
	Mood            int           `json:"mood"`       // 1-10
	Motivation      int           `json:"motivation"` // 1-10
	Blockers        string        `json:"blockers,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	ProgressPercent float64       `json:"progress_percent"`
	DurationMinutes int           `json:"duration_minutes"`
	Date            string        `json:"date"`
	TaskRecords     []SessionTask `json:"task_records,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type SessionTask struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	Completed bool   `json:"completed"`
}

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

type Insight struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	ProfileID       string    `json:"profile_id"`
	GoalID          string    `json:"goal_id,omitempty"`
	StepID          string    `json:"step_id,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	EffortLevel     Level     `json:"effort_level"`
	StressLevel     Level     `json:"stress_level"`
	Summary         string    `json:"summary"`
	Date            string    `json:"date"`
	CreatedAt       time.Time `json:"created_at"`
}

type Task struct {
	ID          string     `json:"id"`
	ProfileID   string     `json:"profile_id"`
	GoalID      string     `json:"goal_id,omitempty"`
	StepID      string     `json:"step_id,omitempty"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Date        string     `json:"date"`
	TimeUTC     string     `json:"time_utc"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RemindedAt  *time.Time `json:"reminded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskReminder is a due task joined with the owner's chat.
type TaskReminder struct {
	TaskID    string `json:"task_id"`
	ProfileID string `json:"profile_id"`
	ChatID    int64  `json:"chat_id"`
	Title     string `json:"title"`
	TimeUTC   string `json:"time_utc"`
	Notes     string `json:"notes"`
	Date      string `json:"date"`
	GoalTitle string `json:"goal_title,omitempty"`
}

type Subscription struct {
	ID                string             `json:"id"`
	ProfileID         string             `json:"profile_id"`
	CustomerID        string             `json:"customer_id"`
	PriceID           string             `json:"price_id"`
	Status            string             `json:"status"`
	Plan              SubscriptionStatus `json:"plan"`
	CurrentPeriodEnd  *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Flow      string    `json:"flow"`
	GoalID    string    `json:"goal_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CoachMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

type DailySummary struct {
	Date       string  `json:"date"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Percentage float64 `json:"percentage"`
	Sessions   int     `json:"sessions"`
	AvgMood    float64 `json:"avg_mood,omitempty"`
}

type WeeklyAnalytics struct {
	WeekNumber    int                 `json:"week_number"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	TotalDone     int                 `json:"total_done"`
	TotalTasks    int                 `json:"total_tasks"`
	Sessions      int                 `json:"sessions"`
	GoalStats     map[string]GoalStat `json:"goal_stats"`
	AvgFeelings   map[string]float64  `json:"avg_feelings"`
	EffortLevels  map[Level]int       `json:"effort_levels"`
	StressLevels  map[Level]int       `json:"stress_levels"`
	Insights      []string            `json:"insights"`
	CompletionPct float64             `json:"completion_percent"`
}

type GoalStat struct {
	Title     string `json:"title"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Sessions  int    `json:"sessions"`
}

// Percent returns completed/total*100, or 0 when total is zero.
func Percent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
