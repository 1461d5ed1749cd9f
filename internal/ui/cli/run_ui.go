package cli

import (
	"context"

	coreapp "cobolscan/internal/core/app"
	"cobolscan/internal/core/ports"

	tea "github.com/charmbracelet/bubbletea"
)

func runUI(app *coreapp.App) error {
	service := app.QueryService()
	m := initialModel(service)
	p := tea.NewProgram(m, tea.WithAltScreen())

	sendUpdate := func(update ports.WatchUpdate) {
		files, err := service.Files(context.Background())
		if err != nil {
			files = nil
		}
		p.Send(updateMsg{
			reports:   update.Reports,
			files:     files,
			fileCount: update.FileCount,
		})
	}

	app.SetUpdateHandler(sendUpdate)
	defer app.SetUpdateHandler(nil)

	go sendUpdate(app.CurrentUpdate())

	_, err := p.Run()
	return err
}
