package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"ballpark/internal/domain"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func newPipelinesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List the pipelines and the tables they write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Pipeline", "Tables", "Description"})
			for _, p := range a.Pipelines.ListPipelines() {
				t.AppendRow(table.Row{p.Name, strings.Join(p.Tables, ", "), p.Description})
			}
			t.Render()
			return nil
		},
	}
}

func newRunsCmd(g *globals) *cobra.Command {
	var pipeline string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			runs, err := a.Pipelines.ListRuns(pipeline, limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pipeline, "pipeline", "p", "", "only runs of this pipeline")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	return cmd
}

func printRuns(w io.Writer, runs []domain.RunLog) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Pipeline", "Started", "Duration", "Status", "Requested", "Fetched", "Empty", "Failed", "Defaulted", "Written", "Error"})
	for _, r := range runs {
		duration := ""
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			r.ID, r.Pipeline, r.StartedAt.Local().Format(time.DateTime), duration, r.Status,
			r.Requested, r.Fetched, r.Empty, r.Failed, r.Defaulted, r.Written, r.Error,
		})
	}
	t.Render()
}

func newSkipsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "skips RUN_ID",
		Short: "Show the identifiers a run skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			skips, err := a.Pipelines.ListSkips(args[0])
			if err != nil {
				return err
			}
			if len(skips) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no skipped identifiers")
				return nil
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Identifier", "Reason", "Attempts", "Error"})
			for _, s := range skips {
				t.AppendRow(table.Row{s.Identifier, s.Reason, s.Attempts, s.Error})
			}
			t.Render()
			return nil
		},
	}
}
