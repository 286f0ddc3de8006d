package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/pkg/timeparse"
	"github.com/fastygo/taskbot/usecase/gamification"
	"github.com/fastygo/taskbot/usecase/task"
)

const timeLayout = "Mon Jan 2 15:04"

var priorityEmoji = map[domain.Priority]string{
	domain.PriorityHigh:   "🔴",
	domain.PriorityMedium: "🟡",
	domain.PriorityLow:    "⚪",
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func esc(s string) string {
	return htmlEscaper.Replace(s)
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("🤖 <b>Task reminder bot</b>\n\n")
	sb.WriteString("Send any text with a time to create a task:\n")
	for _, example := range timeparse.Examples {
		sb.WriteString("• <i>" + esc(example) + "</i>\n")
	}
	sb.WriteString("\nAdd #tags anywhere in the text.\n\n")
	sb.WriteString("<b>Commands</b>\n")
	sb.WriteString("/tasks [#tag] - pending tasks\n")
	sb.WriteString("/done &lt;id&gt; - complete a task\n")
	sb.WriteString("/urgent &lt;text&gt; - create a high priority task\n")
	sb.WriteString("/snooze &lt;id&gt; &lt;30m|2h|tomorrow|week&gt; - postpone\n")
	sb.WriteString("/delete &lt;id&gt; - delete a task\n")
	sb.WriteString("/tags - your tags\n")
	sb.WriteString("/stats - statistics\n")
	sb.WriteString("/profile - level, XP and achievements\n")
	sb.WriteString("/ai &lt;text&gt; - AI task analysis\n")
	sb.WriteString("/jobs &lt;role&gt; [in &lt;location&gt;] - job search\n")
	sb.WriteString("/motivation on|off - daily motivation\n")
	sb.WriteString("/app - open the Mini App")
	return sb.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout) + " UTC"
}

func formatTaskLine(t domain.Task) string {
	line := fmt.Sprintf("%s <code>%s</code> %s", priorityEmoji[t.Priority], t.ShortID(), esc(t.Text))
	return line + "\n    ⏰ " + formatTime(t.RemindAt)
}

func formatCreated(t *domain.Task) string {
	return fmt.Sprintf("✅ <b>Task created</b>\n\n%s %s\n⏰ %s\nID: <code>%s</code>",
		priorityEmoji[t.Priority], esc(t.Text), formatTime(t.RemindAt), t.ShortID())
}

func formatTaskList(tasks []domain.Task, tag string) string {
	if len(tasks) == 0 {
		if tag != "" {
			return "No pending tasks tagged #" + esc(tag) + "."
		}
		return "🎉 No pending tasks."
	}
	header := "📋 <b>Pending tasks</b>"
	if tag != "" {
		header += " #" + esc(tag)
	}
	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, header)
	for _, t := range tasks {
		lines = append(lines, formatTaskLine(t))
	}
	return strings.Join(lines, "\n\n")
}

func formatCompletion(c *task.Completion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ <b>Done:</b> %s\n\n", esc(c.Task.Text))
	if c.Award == nil {
		return strings.TrimSpace(sb.String())
	}
	writeAward(&sb, c.Award)
	return strings.TrimSpace(sb.String())
}

func writeAward(sb *strings.Builder, a *gamification.Award) {
	fmt.Fprintf(sb, "+%d XP", a.XPEarned)
	if a.StreakBonus > 0 {
		fmt.Fprintf(sb, " (+%d streak bonus)", a.StreakBonus)
	}
	sb.WriteString("\n")
	if a.Profile != nil {
		fmt.Fprintf(sb, "🔥 Streak: %d days\n", a.Profile.Streak)
	}
	for _, id := range a.Unlocked {
		achievement := domain.LookupAchievement(id)
		fmt.Fprintf(sb, "🏆 Achievement unlocked: %s (+%d XP)\n", achievement.Name, gamification.AchievementXP)
	}
	if a.LeveledUp && a.Profile != nil {
		fmt.Fprintf(sb, "⬆️ Level up! You are now level %d\n", a.Profile.Level)
	}
}

func formatDeletion(d *task.Deletion) string {
	text := "🗑 <b>Deleted:</b> " + esc(d.Task.Text)
	if d.Penalty != nil && d.Penalty.XPLost > 0 {
		text += fmt.Sprintf("\n-%d XP", d.Penalty.XPLost)
	}
	return text
}

func formatSnoozed(t *domain.Task) string {
	return fmt.Sprintf("⏰ Snoozed until %s\n%s", formatTime(t.RemindAt), esc(t.Text))
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "No tags yet. Add #tags to your tasks."
	}
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = "#" + esc(tag)
	}
	return "🏷 <b>Your tags</b>\n\n" + strings.Join(parts, " ")
}

func formatStats(s *task.Stats) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>Statistics</b>\n\n")
	fmt.Fprintf(&sb, "✅ Completed: %d\n", s.Completed)
	fmt.Fprintf(&sb, "⏳ Pending: %d\n", s.Pending)
	fmt.Fprintf(&sb, "📅 Completed this week: %d", s.CompletedThisWeek)
	if len(s.TopTags) > 0 {
		sb.WriteString("\n\n🏷 <b>Top tags</b>\n")
		for _, tc := range s.TopTags {
			fmt.Fprintf(&sb, "#%s: %d\n", esc(tc.Tag), tc.Count)
		}
	}
	return strings.TrimSpace(sb.String())
}

func formatProfile(p *domain.UserProfile) string {
	var sb strings.Builder
	sb.WriteString("👤 <b>Profile</b>\n\n")
	fmt.Fprintf(&sb, "⭐ Level %d\n", p.Level)
	fmt.Fprintf(&sb, "✨ XP: %d (%d/%d to next level)\n", p.TotalXP, p.XPProgress(), domain.XPPerLevel)
	fmt.Fprintf(&sb, "🔥 Streak: %d days\n", p.Streak)
	fmt.Fprintf(&sb, "✅ Tasks completed: %d\n", p.TasksCompleted)
	fmt.Fprintf(&sb, "🏆 Achievements: %d/%d", len(p.Achievements), len(domain.Achievements))
	for _, id := range p.Achievements {
		sb.WriteString("\n  " + domain.LookupAchievement(id).Name)
	}
	return sb.String()
}

func formatJobs(jobs []domain.JobPosting) string {
	if len(jobs) == 0 {
		return "No jobs found."
	}
	var sb strings.Builder
	sb.WriteString("💼 <b>Jobs</b>\n")
	for i, j := range jobs {
		fmt.Fprintf(&sb, "\n%d. <b>%s</b>", i+1, esc(j.Title))
		if j.Company != "" {
			sb.WriteString(" at " + esc(j.Company))
		}
		if j.URL != "" {
			fmt.Fprintf(&sb, "\n<a href=\"%s\">Apply</a>", esc(j.URL))
		}
	}
	return sb.String()
}
