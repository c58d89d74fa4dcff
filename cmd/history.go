package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/plexist/internal/repositories"
	"github.com/desertthunder/plexist/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// History prints recent passes, or the playlists and missing tracks of one pass with --run.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if r.config == nil {
		config, err := shared.ReadConfig(cmd.String("config"), cmd.String("env-file"))
		if err != nil {
			return err
		}
		r.config = config
	}

	db, history, err := r.openHistory()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("%w: database.path is empty", shared.ErrMissingConfig)
	}
	defer db.Close()

	if keep := cmd.Int("prune"); keep >= 0 {
		deleted, err := history.Prune(ctx, keep)
		if err != nil {
			return err
		}
		r.writePlain("Pruned %d passes\n", deleted)
		return nil
	}

	if runID := cmd.String("run"); runID != "" {
		return r.historyRun(ctx, history, runID)
	}

	runs, err := history.Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		r.writePlain("No sync passes recorded yet\n")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Mode,
			run.Duration().Round(time.Second).String(),
			strconv.Itoa(run.Playlists),
			strconv.Itoa(run.Matched),
			strconv.Itoa(run.Unmatched),
			strconv.Itoa(run.Created),
			strconv.Itoa(run.Updated),
			strconv.Itoa(run.Failed),
		})
	}

	r.writePlain("%s\n", renderTable(
		[]string{"ID", "Started", "Mode", "Duration", "Playlists", "Matched", "Missing", "Created", "Updated", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

func (r *Runner) historyRun(ctx context.Context, history *repositories.RunRepository, runID string) error {
	run, err := history.Get(ctx, runID)
	if err != nil {
		return err
	}

	playlists, err := history.Playlists(ctx, runID)
	if err != nil {
		return err
	}

	missing, err := history.Missing(ctx, runID)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Pass %s (%s mode)", run.ID, run.Mode))
	r.writePlain("Started: %s  Duration: %s\n\n", run.StartedAt.Local().Format(time.DateTime), run.Duration().Round(time.Second))

	rows := make([][]string, 0, len(playlists))
	for _, pl := range playlists {
		status := pl.Status
		if pl.Error != "" {
			status = fmt.Sprintf("%s: %s", pl.Status, pl.Error)
		}
		rows = append(rows, []string{
			pl.Provider,
			pl.Name,
			strconv.Itoa(pl.Matched),
			strconv.Itoa(pl.Unmatched),
			strconv.Itoa(pl.Added),
			strconv.Itoa(pl.Removed),
			status,
		})
	}
	r.writePlain("%s\n", renderTable(
		[]string{"Provider", "Playlist", "Matched", "Missing", "Added", "Removed", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))

	if len(missing) > 0 {
		r.writePlainln("Missing tracks:")
		for _, m := range missing {
			r.writePlain("  - %s - %s (%s)\n", m.Track.Artist, m.Track.Title, m.PlaylistID)
		}
	}
	return nil
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
