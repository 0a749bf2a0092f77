package main

import (
	"fmt"
	"io"

	"github.com/docker-library/registry-publish/publish"

	"github.com/charmbracelet/lipgloss"
)

var (
	regionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	targetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func unitHeader(region string, index int, kind publish.Kind) string {
	if kind == "" {
		kind = "invalid"
	}
	return fmt.Sprintf("[%s] item %d (%s)", regionStyle.Render(region), index, kind)
}

// one unit, as soon as it finishes (called from a single goroutine, so lines from different units never interleave)
func renderOutcome(w io.Writer, o publish.Outcome) {
	if o.Err != nil {
		fmt.Fprintf(w, "%s %s: %s\n", errorStyle.Render("FAILED"), unitHeader(o.Region, o.Index, o.Kind), o.Item)
	} else {
		fmt.Fprintf(w, "%s %s:\n", targetStyle.Render("OK"), unitHeader(o.Region, o.Index, o.Kind))
	}

	for _, entry := range o.Entries {
		line := " <- " + sourceStyle.Render(entry.Source.StringWithKnownDigest(entry.Descriptor.Digest))
		if entry.Arch != "" {
			line += " " + dimStyle.Render("("+entry.Arch+")")
		}
		fmt.Fprintln(w, line)
	}
	// targets pushed before a later failure are still live, so show them either way
	for _, ref := range o.Pushed {
		fmt.Fprintln(w, " - "+targetStyle.Render(ref.String()))
	}
	if o.Err != nil {
		fmt.Fprintln(w, " -- "+errorStyle.Render("ERROR:")+" "+o.Err.Error())
	}

	fmt.Fprintln(w)
}

func renderPlan(w io.Writer, plan publish.Plan) {
	if plan.Err != nil {
		fmt.Fprintf(w, "%s %s: %s\n", errorStyle.Render("INVALID"), unitHeader(plan.Region, plan.Index, plan.Kind), plan.Item)
		fmt.Fprintln(w, " -- "+errorStyle.Render("ERROR:")+" "+plan.Err.Error())
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "%s %s:\n", dimStyle.Render("PLAN"), unitHeader(plan.Region, plan.Index, plan.Kind))
	for _, ref := range plan.Sources {
		fmt.Fprintln(w, " <- "+sourceStyle.Render(ref.String()))
	}
	for _, ref := range plan.Targets {
		fmt.Fprintln(w, " - "+targetStyle.Render(ref.String()))
	}
	fmt.Fprintln(w)
}

func renderSummary(w io.Writer, total, failed int) {
	switch {
	case failed == 0:
		fmt.Fprintln(w, targetStyle.Render(fmt.Sprintf("all %d units succeeded", total)))
	default:
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%d of %d units failed", failed, total)))
	}
}
