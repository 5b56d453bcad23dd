package main

import (
	"fmt"
	"strings"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/models"
)

func printQuestion(q *models.QuestionPayload) {
	fmt.Printf("Question %s (%s, seed %d)\n", q.ID, q.Kind, q.Seed)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(q.Prompt)
	fmt.Println()

	s := q.Solution
	fmt.Println("Answer")
	fmt.Println("------")
	for _, c := range s.Contributions {
		fmt.Printf("  %-40s R = %7.4f m²K/W  (%5.1f%%)\n", c.Label, c.Resistance, c.Share*100)
	}
	fmt.Println()
	fmt.Printf("  Total resistance:   %.4f m²K/W\n", s.TotalResistance)
	fmt.Printf("  U-value:            %.4f W/m²K\n", s.UValue)
	fmt.Printf("  Area:               %.2f m²\n", s.Area)
	fmt.Printf("  Temperature diff.:  %.1f K\n", s.DeltaT)
	fmt.Printf("  Heat flow:          %.2f W (%s)\n", s.HeatLoss, s.Direction)
}

func printKindReport(kind models.QuestionKind, c *catalog.Catalog, r *catalog.Report) {
	if r.Valid && c != nil {
		counts := make([]string, 0)
		names := c.TemplateNames()
		for _, n := range c.LayerCounts() {
			counts = append(counts, fmt.Sprintf("%d layers: %d", n, len(names[n])))
		}
		fmt.Printf("  %-18s OK  %d materials, %s\n", kind, len(c.Materials()), strings.Join(counts, ", "))
		return
	}

	fmt.Printf("  %-18s FAILED (%d)\n", kind, len(r.Findings))
	for _, f := range r.Findings {
		fmt.Printf("    [%s] %s\n", f.Path, f.Message)
	}
}

func printValidationReport(r *catalog.Report) {
	fmt.Println()
	if r.Valid {
		fmt.Printf("Result: VALID (%s)\n", r.Summary())
	} else {
		fmt.Printf("Result: INVALID (%s)\n", r.Summary())
	}
}

func printWorksheetSummary(path string, questions []*models.QuestionPayload) {
	fmt.Printf("Worksheet written to %s\n", path)
	fmt.Printf("  Questions: %d\n", len(questions))
	if len(questions) > 0 {
		fmt.Printf("  Seeds:     %d..%d\n", questions[0].Seed, questions[len(questions)-1].Seed)
	}
}
