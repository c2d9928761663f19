package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var purge bool

func init() {
	historyClearCmd.Flags().BoolVar(&purge, "purge", false, "remove the stored history entirely instead of saving an empty one")
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyClearCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear the saved conversation",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()

		msgs := a.store.Messages()
		if len(msgs) == 0 {
			fmt.Println("No messages yet.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tFROM\tKIND\tTEXT")
		for i, m := range msgs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, m.Sender, m.Kind, oneLine(m.Text, 80))
			if m.TranslatedText != "" {
				fmt.Fprintf(w, "\t\t\t-> %s\n", oneLine(m.TranslatedText, 80))
			}
		}
		return w.Flush()
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		if purge {
			if err := a.store.Purge(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("History removed.")
			return nil
		}
		if err := a.store.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		fmt.Println("History cleared.")
		return nil
	},
}

func oneLine(s string, limit int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return string(r)
}
