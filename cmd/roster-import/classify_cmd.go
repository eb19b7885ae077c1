package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/modules/roster/services"
)

func newClassifyCmd() *cobra.Command {
	var code int

	cmd := &cobra.Command{
		Use:   "classify [level text]",
		Short: "Show how a level code or description maps to (stage, grade)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			var codePtr *int
			if cmd.Flags().Changed("code") {
				codePtr = &code
			}
			if codePtr == nil && strings.TrimSpace(text) == "" {
				return withCode(exitUsage, fmt.Errorf("pass a level text or --code"))
			}

			c := services.ClassifyLevel(text, codePtr)
			return writeJSONLine(cmd.OutOrStdout(), struct {
				Input  string               `json:"input,omitempty"`
				Code   *int                 `json:"code,omitempty"`
				Level  roster.Level         `json:"level"`
				Label  string               `json:"label"`
				Source services.LevelSource `json:"source"`
				Notes  []string             `json:"notes,omitempty"`
			}{text, codePtr, c.Level, c.Level.String(), c.Source, c.Notes})
		},
	}
	cmd.Flags().IntVar(&code, "code", 0, "Numeric level code")
	return cmd
}
