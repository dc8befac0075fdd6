package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/etl/sources"
)

type runFlags struct {
	teams []int
	games []string
	start string
	end   string
}

func (f runFlags) request() (etl.Request, error) {
	var req etl.Request
	for _, g := range f.games {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			return req, fmt.Errorf("--game %q is not a number", g)
		}
		req.GameIDs = append(req.GameIDs, domain.Identifier(g))
	}
	req.TeamIDs = f.teams
	var err error
	if req.StartDate, err = parseDateFlag("start", f.start); err != nil {
		return req, err
	}
	if req.EndDate, err = parseDateFlag("end", f.end); err != nil {
		return req, err
	}
	return req, nil
}

func parseDateFlag(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return d, nil
}

func newRunCmds(g *globals) []*cobra.Command {
	games := []struct {
		name  string
		short string
	}{
		{sources.PipelineScores, "Load final scores of scheduled games into GAME_SCORES"},
		{sources.PipelineLocations, "Load venue locations of scheduled games into GAME_LOCATIONS"},
		{sources.PipelineGames, "Load both scores and venue locations of scheduled games"},
	}

	var cmds []*cobra.Command
	for _, p := range games {
		var f runFlags
		cmd := &cobra.Command{
			Use:   p.name,
			Short: p.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				req, err := f.request()
				if err != nil {
					return err
				}
				return runPipeline(cmd, g, p.name, req)
			},
		}
		cmd.Flags().IntSliceVarP(&f.teams, "team", "t", nil, "team ids whose schedule is listed (default: config games.team_ids)")
		cmd.Flags().StringSliceVarP(&f.games, "game", "g", nil, "game pks to load instead of listing the schedule")
		cmd.Flags().StringVar(&f.start, "start", "", "first schedule date, YYYY-MM-DD")
		cmd.Flags().StringVar(&f.end, "end", "", "last schedule date, YYYY-MM-DD (default: today)")
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, &cobra.Command{
		Use:   sources.PipelineElevation,
		Short: "Look up the elevation of every venue in GAME_LOCATIONS into elevation_data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, g, sources.PipelineElevation, etl.Request{})
		},
	})
	return cmds
}

func runPipeline(cmd *cobra.Command, g *globals, name string, req etl.Request) error {
	a, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	run, res, err := a.Pipelines.Run(cmd.Context(), name, req)
	if run != nil {
		printRuns(cmd.OutOrStdout(), []domain.RunLog{*run})
	}
	if res != nil && len(res.Skips) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d identifiers skipped; see: ballpark skips %s\n", len(res.Skips), run.ID)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
