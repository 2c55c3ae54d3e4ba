package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// Renderer formats admin command output for the terminal.
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
	now     func() time.Time
}

// NewRenderer creates a renderer with the given terminal width
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Renderer{
		glamour: r,
		width:   width,
		now:     time.Now,
	}
}

// RenderMarkdown renders markdown text to styled terminal output
func (r *Renderer) RenderMarkdown(md string) string {
	if r.glamour == nil {
		return md
	}
	out, err := r.glamour.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

var presenceColors = map[entity.Presence]lipgloss.Color{
	entity.PresenceOnline:  colorGreen,
	entity.PresenceBusy:    colorYellow,
	entity.PresenceAway:    colorDimCyan,
	entity.PresenceOffline: colorGray,
}

// AgentsTable 客服在线表
func (r *Renderer) AgentsTable(agents []usecase.AgentView) string {
	if len(agents) == 0 {
		return lipgloss.NewStyle().Foreground(colorGray).Render("No agents have published a status yet.")
	}
	now := r.now()
	rows := make([][]string, len(agents))
	for i, a := range agents {
		status := string(a.EffectiveStatus)
		if a.EffectiveStatus != a.Status {
			status += " (" + string(a.Status) + ")"
		}
		auto := "no"
		if a.AutoAssign {
			auto = "yes"
		}
		rows[i] = []string{
			fmt.Sprint(a.AgentID),
			a.Name,
			status,
			fmt.Sprintf("%d/%d", a.CurrentChatCount, a.MaxConcurrentChats),
			auto,
			Ago(now.Sub(a.LastSeen)),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "AGENT", "STATUS", "CHATS", "AUTO", "LAST SEEN").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Foreground(colorCyan).Bold(true)
			}
			if col == 2 && row >= 0 && row < len(agents) {
				return s.Foreground(presenceColors[agents[row].EffectiveStatus])
			}
			if col == 3 && row >= 0 && row < len(agents) && !agents[row].HasCapacity() {
				return s.Foreground(colorRed)
			}
			return s.Foreground(colorWhite)
		})
	return t.Render()
}

// QuickResponses renders the catalog as markdown grouped by category.
func (r *Renderer) QuickResponses(items []usecase.QuickResponseView) string {
	if len(items) == 0 {
		return lipgloss.NewStyle().Foreground(colorGray).Render("No active quick responses.")
	}
	var md strings.Builder
	category := ""
	for _, qr := range items {
		if qr.Category != category {
			category = qr.Category
			fmt.Fprintf(&md, "## %s\n\n", category)
		}
		fmt.Fprintf(&md, "**%s**\n\n%s\n\n", qr.Title, qr.Body)
	}
	return r.RenderMarkdown(md.String())
}

// Ago formats a duration as a short relative time.
func Ago(d time.Duration) string {
	switch {
	case d < 0:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
