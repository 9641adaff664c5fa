package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/di"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
)

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Inspect and record manual corrections",
}

var correctionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored corrections",
	RunE:  runCorrectionsList,
}

var (
	flagOmitAttribute string
	flagOmitValue     string
	flagNotes         string
)

var correctionsAddOmitCmd = &cobra.Command{
	Use:   "add-omit",
	Short: "Permanently drop candidates matching an attribute value",
	Long: `Records a correction that drops every future candidate whose attribute
matches the given value, before any linking happens. Useful for schools
that closed or appear in a list erroneously.`,
	RunE: runCorrectionsAddOmit,
}

var (
	flagMatchDomain string
	flagNewName     string
	flagNewURL      string
)

var correctionsAddDistrictMatchCmd = &cobra.Command{
	Use:   "add-district-match",
	Short: "Auto-accept candidates into a district by website domain",
	Long: `Records a correction that silently accepts a candidate into a district
when both share the given website domain, skipping the interactive
review. Optional overrides rename the district or replace its URL on
every future match.`,
	RunE: runCorrectionsAddDistrictMatch,
}

func init() {
	correctionsAddOmitCmd.Flags().StringVar(&flagOmitAttribute, "attribute", "name", "attribute to match on")
	correctionsAddOmitCmd.Flags().StringVar(&flagOmitValue, "value", "", "value to match (required)")
	correctionsAddOmitCmd.Flags().StringVar(&flagNotes, "notes", "", "reviewer notes (max 300 chars)")
	_ = correctionsAddOmitCmd.MarkFlagRequired("value")

	correctionsAddDistrictMatchCmd.Flags().StringVar(&flagMatchDomain, "domain", "", "website domain shared by candidate and district (required)")
	correctionsAddDistrictMatchCmd.Flags().StringVar(&flagNewName, "name", "", "district name override")
	correctionsAddDistrictMatchCmd.Flags().StringVar(&flagNewURL, "url", "", "district website override")
	correctionsAddDistrictMatchCmd.Flags().StringVar(&flagNotes, "notes", "", "reviewer notes (max 300 chars)")
	_ = correctionsAddDistrictMatchCmd.MarkFlagRequired("domain")

	correctionsCmd.AddCommand(correctionsListCmd)
	correctionsCmd.AddCommand(correctionsAddOmitCmd)
	correctionsCmd.AddCommand(correctionsAddDistrictMatchCmd)
}

func runCorrectionsList(cmd *cobra.Command, _ []string) error {
	injector := di.NewContainer(configOptions())
	defer injector.Shutdown()

	store, err := do.Invoke[*corrections.Store](injector)
	if err != nil {
		return err
	}
	if err := store.Load(cmd.Context()); err != nil {
		return err
	}

	total := 0
	for _, tag := range []string{
		corrections.TagSchoolAttribute,
		corrections.TagSchoolCorrection,
		corrections.TagDistrictMatch,
	} {
		for _, c := range store.ByTag(tag) {
			total++
			fmt.Printf("%-18s %s\n", tag, describeCorrection(c))
		}
	}
	if total == 0 {
		fmt.Println("no corrections stored")
	}
	return nil
}

func describeCorrection(c corrections.Correction) string {
	desc := ""
	switch corr := c.(type) {
	case *corrections.AttributeCorrection:
		desc = fmt.Sprintf("%s: %v -> %v", corr.Attribute, corr.Value, corr.NewValue)
	case *corrections.SchoolCorrection:
		desc = fmt.Sprintf("%d condition(s), action %s", len(corr.Matches), corr.Action.Type())
	case *corrections.DistrictMatchCorrection:
		desc = fmt.Sprintf("%d rule(s)", len(corr.Rules))
		if corr.UseNewName {
			desc += fmt.Sprintf(", rename to %q", corr.NewName)
		}
	}
	if notes := c.GetNotes(); notes != "" {
		desc += " // " + notes
	}
	return desc
}

func runCorrectionsAddOmit(cmd *cobra.Command, _ []string) error {
	attr, err := domain.AttributeByName(flagOmitAttribute)
	if err != nil {
		return err
	}

	injector := di.NewContainer(configOptions())
	defer injector.Shutdown()

	store, err := do.Invoke[*corrections.Store](injector)
	if err != nil {
		return err
	}
	if err := store.Load(cmd.Context()); err != nil {
		return err
	}

	err = store.Add(cmd.Context(), &corrections.SchoolCorrection{
		Matches: []corrections.AttributeMatch{
			{Attribute: attr, Value: flagOmitValue, MinLevel: domain.LevelIndicator},
		},
		Action: corrections.OmitAction{},
		Notes:  flagNotes,
	})
	if err != nil {
		return err
	}
	fmt.Printf("recorded omit correction on %s = %q\n", attr, flagOmitValue)
	return nil
}

func runCorrectionsAddDistrictMatch(cmd *cobra.Command, _ []string) error {
	if flagNewName == "" && flagNewURL == "" && flagNotes == "" {
		return errors.Validation("nothing to record: set --name, --url, or --notes")
	}

	injector := di.NewContainer(configOptions())
	defer injector.Shutdown()

	store, err := do.Invoke[*corrections.Store](injector)
	if err != nil {
		return err
	}
	if err := store.Load(cmd.Context()); err != nil {
		return err
	}

	err = store.Add(cmd.Context(), &corrections.DistrictMatchCorrection{
		Rules: []corrections.Rule{
			{Type: corrections.RuleWebsiteDomainMatches, Value: flagMatchDomain},
		},
		NewName:    flagNewName,
		UseNewName: flagNewName != "",
		NewURL:     flagNewURL,
		UseNewURL:  flagNewURL != "",
		Notes:      flagNotes,
	})
	if err != nil {
		return err
	}
	fmt.Printf("recorded district match correction for domain %q\n", flagMatchDomain)
	return nil
}
