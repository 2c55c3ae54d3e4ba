package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// AppVersion 版本号, 构建时可通过 -ldflags 覆盖
var AppVersion = "0.1.0"

// brand colors
var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorDimCyan = lipgloss.Color("#00AFAF")
	colorGray    = lipgloss.Color("#6C6C6C")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorDim     = lipgloss.Color("#4E4E4E")
	colorGreen   = lipgloss.Color("#00FF87")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorRed     = lipgloss.Color("#FF5F5F")
)

var logoLines = []string{
	" ███  ████   ████     ████ ██  ██  ███  █████",
	"██    ██ ██ ██       ██    ██  ██ ██ ██   ██ ",
	" ███  ████  ██       ██    ██████ █████   ██ ",
	"   ██ ██ ██ ██       ██    ██  ██ ██ ██   ██ ",
	" ███  ██ ██  ████     ████ ██  ██ ██ ██   ██ ",
}

var logoGradient = []lipgloss.Color{
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#00CFFF"),
	lipgloss.Color("#009FFF"),
	lipgloss.Color("#006FFF"),
	lipgloss.Color("#5F5FFF"),
}

// BannerInfo 启动横幅信息
type BannerInfo struct {
	Address  string
	Database string
	Redis    bool
	Kafka    bool
	Telegram bool
}

// RenderBanner returns the startup banner printed by `serve`.
func RenderBanner(info BannerInfo, width int) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)
	versionStyle := lipgloss.NewStyle().Foreground(colorDimCyan)
	tipStyle := lipgloss.NewStyle().Foreground(colorDim)

	var logo strings.Builder
	if width >= 48 {
		for i, line := range logoLines {
			c := logoGradient[i%len(logoGradient)]
			logo.WriteString(lipgloss.NewStyle().Foreground(c).Bold(true).Render(line) + "\n")
		}
	} else {
		logo.WriteString(lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Render(" ◇  S R C  C H A T") + "\n")
	}

	line := func(label, value string) string {
		return fmt.Sprintf("  %s %s", labelStyle.Render(fmt.Sprintf("%-9s", label)), value)
	}

	lines := []string{
		line("Listen", valueStyle.Render(info.Address)),
		line("Database", valueStyle.Render(info.Database)),
		line("Redis", onOff(info.Redis)),
		line("Kafka", onOff(info.Kafka)),
		line("Telegram", onOff(info.Telegram)),
		line("Env", labelStyle.Render(runtime.GOOS+"/"+runtime.GOARCH)),
	}

	return fmt.Sprintf("\n%s%s\n\n%s\n\n%s\n",
		logo.String(),
		versionStyle.Render("  v"+AppVersion),
		strings.Join(lines, "\n"),
		tipStyle.Render("  Ctrl+C 停止服务"),
	)
}

func onOff(enabled bool) string {
	if enabled {
		return lipgloss.NewStyle().Foreground(colorGreen).Render("enabled")
	}
	return lipgloss.NewStyle().Foreground(colorDim).Render("disabled")
}
