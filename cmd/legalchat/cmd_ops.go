package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"legalchat/internal/domain"
	"legalchat/internal/service"
)

var (
	summarizePath string
	summarizeFile string
	docType       string
	translateIdx  int
	translateLang string
	analyzePath   string
	compareA      string
	compareB      string
)

func init() {
	summarizeCmd.Flags().StringVar(&summarizePath, "path", "", "path of a PDF on the backend")
	summarizeCmd.Flags().StringVar(&summarizeFile, "file", "", "local PDF to upload")
	generateCmd.Flags().StringVar(&docType, "type", string(domain.DocumentNotice), "document type: notice or summons")
	translateCmd.Flags().IntVar(&translateIdx, "index", -1, "message number from `history show` (1-based); defaults to the latest")
	translateCmd.Flags().StringVar(&translateLang, "language", "", "target language")
	_ = translateCmd.MarkFlagRequired("language")
	for _, c := range []*cobra.Command{entitiesCmd, citationsCmd} {
		c.Flags().StringVar(&analyzePath, "path", "", "path of a PDF on the backend")
		_ = c.MarkFlagRequired("path")
	}
	compareCmd.Flags().StringVar(&compareA, "a", "", "path of the first PDF on the backend")
	compareCmd.Flags().StringVar(&compareB, "b", "", "path of the second PDF on the backend")
	_ = compareCmd.MarkFlagRequired("a")
	_ = compareCmd.MarkFlagRequired("b")

	rootCmd.AddCommand(askCmd, summarizeCmd, generateCmd, translateCmd, statusCmd, ingestCmd,
		entitiesCmd, compareCmd, citationsCmd)
}

var errRejected = errors.New("request rejected")

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a legal question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		out, ok := a.dispatcher.Query(cmd.Context(), strings.Join(args, " "))
		return report(cmd, out, ok, "question is empty")
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize a PDF by backend path or by upload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src := domain.SummarizeSource{Path: summarizePath}
		if summarizeFile != "" {
			data, err := os.ReadFile(summarizeFile)
			if err != nil {
				return fmt.Errorf("read %s: %w", summarizeFile, err)
			}
			src.Attachment = &domain.Attachment{Name: filepath.Base(summarizeFile), Content: data}
		}
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		out, ok := a.dispatcher.Summarize(cmd.Context(), src)
		return report(cmd, out, ok, "pass --path or --file")
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <description>",
	Short: "Draft a legal notice or summons and save the PDF",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dt, ok := domain.ParseDocumentType(docType)
		if !ok {
			return fmt.Errorf("unknown document type %q: want notice or summons", docType)
		}
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		out, ok := a.dispatcher.GenerateDocument(cmd.Context(), strings.Join(args, " "), dt)
		return report(cmd, out, ok, "description is empty")
	},
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a message from the history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		index := a.store.Len() - 1
		if translateIdx > 0 {
			index = translateIdx - 1
		}
		out, ok := a.dispatcher.Translate(cmd.Context(), index, translateLang)
		if !ok {
			return fmt.Errorf("%w: no message %d or nothing to translate", errRejected, index+1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Message.TranslatedText)
		return out.Err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		msg, err := a.dispatcher.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("backend %s unreachable: %w", a.cfg.Backend.BaseURL, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf-path>...",
	Short: "Index PDFs on the backend into its knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		out, ok := a.dispatcher.Ingest(cmd.Context(), args)
		return report(cmd, out, ok, "no paths given")
	},
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the parties, dates, court and other entities in a PDF",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		out, ok := a.dispatcher.ExtractEntities(cmd.Context(), analyzePath)
		return report(cmd, out, ok, "path is empty")
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Summarize the differences between two PDFs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		out, ok := a.dispatcher.CompareDocuments(cmd.Context(), compareA, compareB)
		return report(cmd, out, ok, "both --a and --b are required")
	},
}

var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "List the statutes and case-law citations in a PDF",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()
		out, ok := a.dispatcher.ExtractCitations(cmd.Context(), analyzePath)
		return report(cmd, out, ok, "path is empty")
	},
}

// report prints the message a finished call logged and turns a failed outcome into a non-zero exit.
func report(cmd *cobra.Command, out service.Outcome, accepted bool, reason string) error {
	if !accepted {
		return fmt.Errorf("%w: %s", errRejected, reason)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out.Message.Text)
	for i, src := range out.Message.SourceDocuments {
		fmt.Fprintf(w, "\n[%d] %s\n", i+1, src)
	}
	return out.Err
}
