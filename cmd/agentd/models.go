package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"agentd/llm"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	idStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the configured catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Close()

		catalog, err := llm.LoadCatalog(cfg.Models.File, cfg.Models.Default, llm.NewProviderFactory(logger))
		if err != nil {
			return err
		}
		printModels(cmd.OutOrStdout(), catalog.List(), catalog.Default())
		return nil
	},
}

func printModels(w io.Writer, models []llm.ModelInfo, defaultID string) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Models (%d)", len(models))))
	for _, m := range models {
		marker := "  "
		if m.ID == defaultID {
			marker = "* "
		}
		fmt.Fprintf(w, "%s%s %s\n", marker, idStyle.Render(m.ID), dimStyle.Render(m.Provider+" / "+m.DisplayName))
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(capabilities(m.Capabilities)))
	}
}

func capabilities(c llm.ModelCapabilities) string {
	var parts []string
	if c.SupportsStreaming {
		parts = append(parts, "streaming")
	}
	if c.SupportsTools {
		parts = append(parts, "tools")
	}
	parts = append(parts,
		fmt.Sprintf("context %d", c.ContextWindow),
		fmt.Sprintf("max output %d", c.MaxOutputTokens))
	return strings.Join(parts, ", ")
}
