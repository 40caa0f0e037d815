package banner

import (
	"github.com/charmbracelet/lipgloss"

	"loadpulse/internal/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    __                _____        __
   / /___  ____ _____/ / _ \__  __/ /_______
  / / __ \/ __ '/ __  / ___/ / / / / ___/ _ \
 / / /_/ / /_/ / /_/ / /  / /_/ / (__  )  __/
/_/\____/\__,_/\__,_/_/   \__,_/_/____/\___/`

	return "\n" + style.Render(ascii) + "\n"
}
