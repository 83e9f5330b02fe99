package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/testbridge/adopub/pkg/interactive"
)

// RunInteractive presents the main menu loop until the user exits.
func RunInteractive() {
	options := []interactive.MenuOption{
		{
			Name:        "Publish",
			Description: "Publish a cucumber JSON report",
			Action: func() error {
				path, err := interactive.AskPath("Report file", "reports/cucumber.json")
				if err != nil {
					return err
				}
				if !interactive.Confirm(fmt.Sprintf("Publish %s to Azure DevOps?", path)) {
					return nil
				}
				if err := runPublish(path); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
				interactive.PauseForEnter()
				return nil
			},
		},
		{
			Name:        "Validate",
			Description: "Check connectivity and credentials",
			Action: func() error {
				if err := runValidate(); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
				interactive.PauseForEnter()
				return nil
			},
		},
		{
			Name:        "Show Config",
			Description: "Display current configuration",
			Action: func() error {
				if err := showConfig(); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
				interactive.PauseForEnter()
				return nil
			},
		},
	}

	for {
		if err := interactive.ShowMainMenu(options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}
