package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/sky-flux/debias/fairness"
	"github.com/sky-flux/debias/internal/experiment"
)

type renderer func(io.Writer, *experiment.Result) error

var renderers = map[string]renderer{
	"text": renderText,
	"yaml": renderYAML,
	"json": renderJSON,
}

func renderYAML(w io.Writer, res *experiment.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// renderJSON fails on NaN metrics, which encoding/json cannot represent;
// use yaml or text for degenerate splits.
func renderJSON(w io.Writer, res *experiment.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func renderText(w io.Writer, res *experiment.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "DATASET\tSAMPLES\tBASE RATE\tMEAN DIFFERENCE\tDISPARATE IMPACT")
	for _, row := range []struct {
		name string
		r    fairness.DatasetReport
	}{
		{"train", res.Train},
		{"test", res.Test},
	} {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\n",
			row.name, row.r.Samples, row.r.BaseRate, row.r.MeanDifference, row.r.DisparateImpact)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "METRIC\tPLAIN\tDEBIASED")
	p, d := res.Plain.Report, res.Debiased.Report
	for _, row := range []struct {
		name          string
		plain, debias float64
	}{
		{"accuracy", p.Accuracy, d.Accuracy},
		{"balanced accuracy", p.BalancedAccuracy, d.BalancedAccuracy},
		{"true positive rate", p.TruePositiveRate, d.TruePositiveRate},
		{"true negative rate", p.TrueNegativeRate, d.TrueNegativeRate},
		{"mean difference", p.MeanDifference, d.MeanDifference},
		{"disparate impact", p.DisparateImpact, d.DisparateImpact},
		{"equal opportunity difference", p.EqualOpportunityDifference, d.EqualOpportunityDifference},
		{"average odds difference", p.AverageOddsDifference, d.AverageOddsDifference},
		{"theil index", p.TheilIndex, d.TheilIndex},
		{"final classifier loss", res.Plain.FinalLoss, res.Debiased.FinalLoss},
	} {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", row.name, row.plain, row.debias)
	}
	return tw.Flush()
}
