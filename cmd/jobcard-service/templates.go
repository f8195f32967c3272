package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jobcard-service/internal/model"
	"jobcard-service/internal/sop"
)

var templatesJSON bool

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Validate and print the SOP template catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printTemplates(cmd.OutOrStdout(), sop.DefaultTemplates(), templatesJSON)
	},
}

func init() {
	templatesCmd.Flags().BoolVar(&templatesJSON, "json", false, "Print the catalog as JSON")
	rootCmd.AddCommand(templatesCmd)
}

func printTemplates(w io.Writer, templates []model.SOPTemplate, asJSON bool) error {
	registry, err := sop.NewRegistry(templates)
	if err != nil {
		return err
	}

	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(registry.List())
	}

	for _, template := range registry.List() {
		fmt.Fprintf(w, "%s  %s  (%d min, %d steps)\n", template.ID, template.ServiceName, template.EstimatedDurationMinutes, len(template.Steps))
		for i, step := range template.Steps {
			var flags []string
			if step.Required {
				flags = append(flags, "required")
			}
			if step.PhotoRequired {
				flags = append(flags, fmt.Sprintf("%d %s photos", step.RequiredPhotos, step.PhotoType))
			}
			if len(step.Checkpoints) > 0 {
				flags = append(flags, fmt.Sprintf("%d checkpoints", len(step.Checkpoints)))
			}
			fmt.Fprintf(w, "  %d. %-20s %-40s %s\n", i+1, step.ID, step.Name, strings.Join(flags, ", "))
		}
	}
	return nil
}
