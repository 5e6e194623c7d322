package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"coachboard/internal/database"
	"coachboard/internal/utils"
)

const (
	maxProgressDays = 366
	streakLookback  = 365
)

type GoalCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Archived  int `json:"archived"`
}

type Overview struct {
	Date           string     `json:"date"`
	Goals          GoalCounts `json:"goals"`
	StepsCompleted int        `json:"steps_completed"`
	StepsTotal     int        `json:"steps_total"`
	StepsPercent   float64    `json:"steps_percent"`
	TodayDone      int        `json:"today_done"`
	TodayTotal     int        `json:"today_total"`
	TodayPercent   float64    `json:"today_percent"`
	Sessions       int        `json:"sessions"`
	AvgMood7d      float64    `json:"avg_mood_7d"`
	Streak         int        `json:"streak"`
}

type StepDeadline struct {
	Date      string `json:"date"`
	GoalID    string `json:"goal_id"`
	GoalTitle string `json:"goal_title"`
	StepID    string `json:"step_id"`
	StepTitle string `json:"step_title"`
	Completed bool   `json:"completed"`
}

type Calendar struct {
	Month     string                     `json:"month"`
	Tasks     map[string][]database.Task `json:"tasks"`
	Deadlines []StepDeadline             `json:"deadlines"`
}

type DashboardService struct {
	repository *database.Repository
	now        func() time.Time
}

func NewDashboardService(repo *database.Repository, now func() time.Time) *DashboardService {
	return &DashboardService{
		repository: repo,
		now:        now,
	}
}

func (ds *DashboardService) Overview(ctx context.Context, profileID string) (*Overview, error) {
	now := ds.now()
	today := utils.DateKey(now)
	out := &Overview{Date: today}

	goals, err := ds.repository.ListGoals(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		out.Goals.Total++
		switch g.Status {
		case database.GoalActive:
			out.Goals.Active++
		case database.GoalCompleted:
			out.Goals.Completed++
		case database.GoalArchived:
			out.Goals.Archived++
		}
	}

	steps, err := ds.repository.ListStepsForProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out.StepsTotal = len(steps)
	for _, s := range steps {
		if s.Completed {
			out.StepsCompleted++
		}
	}
	out.StepsPercent = database.Percent(out.StepsCompleted, out.StepsTotal)

	summary, err := ds.repository.GetDailySummary(ctx, profileID, today)
	if err != nil {
		return nil, err
	}
	out.TodayDone = summary.Completed
	out.TodayTotal = summary.Total
	out.TodayPercent = summary.Percentage

	sessions, err := ds.repository.ListSessions(ctx, database.SessionFilter{ProfileID: profileID})
	if err != nil {
		return nil, err
	}
	out.Sessions = len(sessions)

	weekAgo := utils.DateKey(now.AddDate(0, 0, -6))
	recent, err := ds.repository.GetDailySummaries(ctx, profileID, weekAgo, today)
	if err != nil {
		return nil, err
	}
	out.AvgMood7d = weightedMood(recent)

	active, err := ds.repository.ActiveDates(ctx, profileID, utils.DateKey(now.AddDate(0, 0, -streakLookback)), today)
	if err != nil {
		return nil, err
	}
	out.Streak = currentStreak(active, now)

	return out, nil
}

// weightedMood averages the per-day mood weighted by the number of sessions.
func weightedMood(days map[string]database.DailySummary) float64 {
	var sum float64
	var n int
	for _, d := range days {
		sum += d.AvgMood * float64(d.Sessions)
		n += d.Sessions
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// currentStreak counts consecutive active days ending today. A quiet today
// does not break a streak that ran through yesterday.
func currentStreak(active map[string]bool, now time.Time) int {
	day := now
	if !active[utils.DateKey(day)] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for active[utils.DateKey(day)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// DailyProgress returns one bucket per day in from..to, zero-filled.
func (ds *DashboardService) DailyProgress(ctx context.Context, profileID, from, to string) ([]database.DailySummary, error) {
	days, err := utils.DaysBetween(from, to)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if len(days) > maxProgressDays {
		return nil, invalid("range spans %d days, at most %d allowed", len(days), maxProgressDays)
	}

	summaries, err := ds.repository.GetDailySummaries(ctx, profileID, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]database.DailySummary, 0, len(days))
	for _, d := range days {
		s, ok := summaries[d]
		if !ok {
			s = database.DailySummary{Date: d}
		}
		out = append(out, s)
	}
	return out, nil
}

func (ds *DashboardService) WeeklyReport(ctx context.Context, profileID string, at time.Time) (*database.WeeklyAnalytics, error) {
	start, end, week := utils.WeekBounds(at)

	analytics, err := ds.repository.GetWeeklyAnalytics(ctx, profileID, utils.DateKey(start), utils.DateKey(end))
	if err != nil {
		return nil, err
	}

	analytics.WeekNumber = week
	analytics.CompletionPct = database.Percent(analytics.TotalDone, analytics.TotalTasks)
	analytics.Insights = generateInsights(analytics)

	return analytics, nil
}

func generateInsights(analytics *database.WeeklyAnalytics) []string {
	if analytics.TotalTasks == 0 && analytics.Sessions == 0 {
		return []string{"📊 Not enough data yet. Keep logging tasks and sessions!"}
	}

	var insights []string

	if analytics.TotalTasks > 0 {
		switch rate := analytics.CompletionPct; {
		case rate < 50:
			insights = append(insights, "💪 Focus on finishing the tasks you plan")
		case rate > 80:
			insights = append(insights, "🎯 Great week! Keep it up")
		default:
			insights = append(insights, "📈 Solid progress, there is room to grow")
		}
	}

	goalIDs := make([]string, 0, len(analytics.GoalStats))
	for id := range analytics.GoalStats {
		goalIDs = append(goalIDs, id)
	}
	sort.Strings(goalIDs)

	for _, id := range goalIDs {
		stats := analytics.GoalStats[id]
		if id == "" || stats.Total == 0 {
			continue
		}
		if rate := database.Percent(stats.Completed, stats.Total); rate < 40 {
			insights = append(insights, fmt.Sprintf("⚠️ %s needs attention: %.0f%% done", stats.Title, rate))
		}
	}

	if avgMood, ok := analytics.AvgFeelings["mood"]; ok {
		if avgMood < 5 {
			insights = append(insights, "🔋 Mood has been low. Check your sleep and workload")
		} else if avgMood > 8 {
			insights = append(insights, "⚡ Your mood is excellent!")
		}
	}

	if high := analytics.StressLevels[database.LevelHigh]; high > 0 && high*2 >= analytics.Sessions {
		insights = append(insights, "🧘 Most sessions felt stressful. Consider smaller steps")
	}

	return insights
}

// Calendar groups the month's tasks by date and lists the step deadlines
// falling in it.
func (ds *DashboardService) Calendar(ctx context.Context, profileID, month string) (*Calendar, error) {
	if month == "" {
		month = ds.now().Format(utils.MonthLayout)
	}
	first, last, err := utils.MonthBounds(month)
	if err != nil {
		return nil, invalid("month must be YYYY-MM, got %q", month)
	}

	tasks, err := ds.repository.ListTasksBetween(ctx, profileID, first, last)
	if err != nil {
		return nil, err
	}
	cal := &Calendar{Month: month, Tasks: make(map[string][]database.Task), Deadlines: []StepDeadline{}}
	for _, t := range tasks {
		cal.Tasks[t.Date] = append(cal.Tasks[t.Date], t)
	}

	goals, err := ds.repository.ListGoals(ctx, profileID)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(goals))
	for _, g := range goals {
		titles[g.ID] = g.Title
	}

	steps, err := ds.repository.ListStepsForProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		if s.Deadline == "" || s.Deadline < first || s.Deadline > last {
			continue
		}
		cal.Deadlines = append(cal.Deadlines, StepDeadline{
			Date:      s.Deadline,
			GoalID:    s.GoalID,
			GoalTitle: titles[s.GoalID],
			StepID:    s.ID,
			StepTitle: s.Title,
			Completed: s.Completed,
		})
	}
	sort.SliceStable(cal.Deadlines, func(i, j int) bool { return cal.Deadlines[i].Date < cal.Deadlines[j].Date })

	return cal, nil
}
