package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"legalchat/internal/speech"
	"legalchat/internal/tui"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var engine speech.Engine
		if len(a.cfg.Speech.Command) > 0 {
			engine = speech.NewCommandEngine(a.cfg.Speech.Command)
		}
		recognizer := speech.NewRecognizer(engine)
		defer recognizer.Stop()

		m := tui.New(ctx, a.dispatcher, a.store, recognizer, a.log.Named("tui"))
		if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("run chat: %w", err)
		}
		return nil
	},
}
