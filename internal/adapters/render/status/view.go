package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const adBarWidth = 16

// Dashboard is everything the summary view shows. Session is nil when nobody
// is signed in.
type Dashboard struct {
	Connection domain.ConnectionState
	Telemetry  domain.Telemetry
	Session    *domain.Session
	Policy     domain.AdPolicy
	Now        time.Time
	// Stale marks a session served from the local cache after a failed refresh.
	Stale bool
}

type TasksView struct {
	Tasks   []domain.RewardTask
	Session *domain.Session
	Policy  domain.AdPolicy
	Now     time.Time
}

func renderDashboard(d Dashboard, s styles) string {
	state := d.Connection
	if state == "" {
		state = domain.ConnectionDisconnected
	}

	lines := []string{
		s.title.Render("SweetData"),
		lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render("tunnel: "), s.connection(state).Render(state.Label())),
	}
	if state == domain.ConnectionConnected {
		lines = append(lines, s.detail.Render(telemetryLine(d.Telemetry)))
	}

	if d.Session == nil {
		lines = append(lines, s.section.Render(s.empty.Render("Not signed in.")))
	} else {
		lines = append(lines, s.section.Render(renderSession(*d.Session, d.Policy, d.Now, d.Stale, s)))
	}

	lines = append(lines, s.section.Render(s.header.Render(policyLine(d.Policy))))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(session domain.Session, policy domain.AdPolicy, now time.Time, stale bool, s styles) string {
	title := userTitle(session)
	if stale {
		title += " " + s.warning.Render("[offline]")
	}

	parts := []string{
		s.user.Render(title),
		s.detail.Render(fmt.Sprintf("balance: %d MB", session.BalanceUnits)),
	}
	if plan := planLine(session); plan != "" {
		parts = append(parts, s.detail.Render(plan))
	}
	parts = append(parts, adsLine(session.DailyAdsWatched, policy, s))
	parts = append(parts, s.detail.Render("daily bonus: "+dailyBonusLabel(session, now)))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderTasks(v TasksView, s styles) string {
	lines := []string{
		s.title.Render("Reward tasks"),
		s.header.Render(fmt.Sprintf("tasks: %d", len(v.Tasks))),
	}

	if len(v.Tasks) == 0 {
		lines = append(lines, s.empty.Render("No tasks available."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	watched := int64(0)
	if v.Session != nil {
		watched = v.Session.DailyAdsWatched
	}

	for _, task := range v.Tasks {
		lines = append(lines, taskLine(task, watched, v.Policy, s))
	}

	if v.Session != nil {
		lines = append(lines, s.section.Render(s.detail.Render("daily bonus: "+dailyBonusLabel(*v.Session, v.Now))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func taskLine(task domain.RewardTask, watched int64, policy domain.AdPolicy, s styles) string {
	mark := s.meta.Render("[ ]")
	if task.Completed {
		mark = s.done.Render("[x]")
	}

	line := fmt.Sprintf("%s %s %s", mark, s.key.Render(fmt.Sprintf("%-4s", task.ID)), task.Title)
	line += " " + s.meta.Render(fmt.Sprintf("+%d MB", task.RewardUnits))

	if task.RequiresAdGate {
		switch {
		case !policy.Enabled:
			line += " " + s.empty.Render("(ads off)")
		case policy.CapReached(watched):
			line += " " + s.warning.Render("(limit reached)")
		default:
			line += " " + s.meta.Render(fmt.Sprintf("(%d left today)", policy.RemainingAds(watched)))
		}
	}

	return line
}

func telemetryLine(t domain.Telemetry) string {
	return fmt.Sprintf("speed: %.1f MB/s  ping: %dms  used: %.1f MB", t.ThroughputUnitsPerSec, t.PingMs, t.TotalUsedUnits)
}

func userTitle(session domain.Session) string {
	name := strings.TrimSpace(session.Username)
	if name == "" {
		name = string(session.UserID)
	}
	if email := strings.TrimSpace(session.Email); email != "" {
		return fmt.Sprintf("%s <%s>", name, email)
	}
	return name
}

func planLine(session domain.Session) string {
	plan := strings.TrimSpace(session.Plan)
	if plan == "" {
		return ""
	}
	if expiry := strings.TrimSpace(session.ExpiryDate); expiry != "" {
		return fmt.Sprintf("plan: %s (expires %s)", plan, expiry)
	}
	return "plan: " + plan
}

func policyLine(policy domain.AdPolicy) string {
	if !policy.Enabled {
		return "ads: disabled"
	}
	return fmt.Sprintf("ads: enabled, %d MB per ad, %d per day", policy.AdRewardUnits, policy.MaxDailyAds)
}

func dailyBonusLabel(session domain.Session, now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	if session.DailyBonusClaimed(now) {
		return "claimed today"
	}
	return "available"
}

func adsLine(watched int64, policy domain.AdPolicy, s styles) string {
	label := s.key.Render("ads today:")
	if !policy.Enabled || policy.MaxDailyAds <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.empty.Render("n/a"))
	}

	usedPercent := clampPercent(float64(watched) / float64(policy.MaxDailyAds) * 100)
	leftPercent := 100 - usedPercent
	countStyle := lipgloss.NewStyle().Foreground(interpolateColor(leftPercent, 0, 100))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderProgressBar(usedPercent, adBarWidth, s),
		" ",
		countStyle.Render(fmt.Sprintf("%d/%d", min(watched, policy.MaxDailyAds), policy.MaxDailyAds)),
	)
}

func renderProgressBar(usedPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	used := clampPercent(usedPercent)
	filled := int(math.Round(float64(width) * used / 100.0))
	filled = max(0, min(filled, width))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, lo, hi float64) lipgloss.Color {
	if hi == lo {
		return lipgloss.Color("255")
	}

	normalized := (value - lo) / (hi - lo)
	normalized = math.Max(0, math.Min(normalized, 1))

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
