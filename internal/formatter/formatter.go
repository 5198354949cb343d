// package formatter renders run summaries as tables and exports run output to JSON and CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/desertthunder/fanx/internal/cache"
	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
	"github.com/desertthunder/fanx/internal/tasks"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws a rounded table. Short rows are padded with empty cells.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	// Headers carry ids (run ids, cache paths) whose casing must survive.
	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
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

func count(n int) string {
	return humanize.Comma(int64(n))
}

func duration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// Summary renders the totals of a run.
func Summary(r *tasks.RunResult) string {
	rows := [][]string{
		{"Target", r.Target.DocumentID(false)},
		{"Customers", count(r.Customers)},
		{"  fetched", count(len(r.CustomerSucceeded))},
		{"  not found", count(len(r.CustomerNotFound))},
		{"  failed", count(len(r.CustomerFailed))},
		{"Gender (m/f)", fmt.Sprintf("%s / %s", count(r.Gender.Male), count(r.Gender.Female))},
		{"Likes loaded", count(r.TotalLikes)},
		{"  unique", count(len(r.Likes))},
		{"  compacted", count(len(r.CompactedLikes))},
		{"Listens loaded", count(r.TotalListens)},
		{"Tracks", count(r.Tracks)},
		{"  from cache", count(r.CachedTracks)},
		{"  lookup failed", count(len(r.TrackFailed))},
		{"Artists", count(r.Artists)},
		{"  with fans", count(len(r.FilteredArtists))},
		{"  compacted", count(len(r.CompactedArtists))},
		{"  images from cache", count(r.CachedArtists)},
		{"  image lookup failed", count(len(r.ImageFailed))},
		{"Published", strings.Join(r.Published, ", ")},
		{"Elapsed", duration(r.Elapsed())},
	}
	return renderTable([]string{"Run " + r.RunID, ""}, rows, []columnAlignment{alignLeft, alignRight})
}

// MusicApps renders the listening application histogram, most used first.
func MusicApps(apps map[string]int) string {
	names := slices.Collect(maps.Keys(apps))
	slices.SortFunc(names, func(a, b string) int {
		if apps[a] != apps[b] {
			return apps[b] - apps[a]
		}
		return strings.Compare(a, b)
	})

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		label := name
		if label == "" {
			label = "(unknown)"
		}
		rows = append(rows, []string{label, count(apps[name])})
	}
	return renderTable([]string{"Application", "Listens"}, rows, []columnAlignment{alignLeft, alignRight})
}

// Timings renders the elapsed time of every stage.
func Timings(timings []tasks.StageTiming) string {
	rows := make([][]string, 0, len(timings))
	for _, t := range timings {
		rows = append(rows, []string{t.Phase.Title(), duration(t.Elapsed)})
	}
	return renderTable([]string{"Stage", "Elapsed"}, rows, []columnAlignment{alignLeft, alignRight})
}

// RunsTable renders recorded runs, newest first as given.
func RunsTable(runs []*models.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := string(r.Status)
		if r.Error != "" {
			status += ": " + shared.FilterLineBreak(r.Error, " ")
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Sequence),
			r.Target.DocumentID(false),
			status,
			count(r.Customers),
			count(r.FilteredArtists),
			humanize.Time(r.StartedAt),
			duration(r.Duration()),
		})
	}
	return renderTable(
		[]string{"#", "Target", "Status", "Customers", "Artists", "Started", "Elapsed"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
	)
}

// CacheTable renders cache statistics.
func CacheTable(stats ...cache.Stats) string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.Kind,
			s.Path,
			count(s.Count),
			count(s.Entries),
			count(len(s.Folders)),
		})
	}
	return renderTable(
		[]string{"Cache", "Path", "Count", "Entries", "Folders"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

// ExportLikesCSV converts likes to CSV with columns: ID, Name, Category, Count
func ExportLikesCSV(likes []*models.Like) ([]byte, error) {
	records := make([][]string, 0, len(likes))
	for _, l := range likes {
		records = append(records, []string{l.ID, l.Name, l.Category, strconv.Itoa(l.Count)})
	}
	return writeCSV([]string{"ID", "Name", "Category", "Count"}, records)
}

// ExportArtistsCSV converts artists to CSV with columns: ID, Name, Application, Href, Fans, Image
func ExportArtistsCSV(artists []*models.FilteredArtist) ([]byte, error) {
	records := make([][]string, 0, len(artists))
	for _, a := range artists {
		image := ""
		if len(a.Images) > 0 {
			image = a.Images[0].URL
		}
		records = append(records, []string{a.ID, a.Name, a.Application, a.Href, strconv.Itoa(a.Count), image})
	}
	return writeCSV([]string{"ID", "Name", "Application", "Href", "Fans", "Image"}, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportResult contains the paths of files created by [WriteRunExport]
type ExportResult struct {
	Directory string
	Files     []string
}

// WriteRunExport writes the run's documents as JSON and its likes and artists
// as CSV into dir, which defaults to the document id of the target.
//
// Creates {dir}/{document id}.json per document, {dir}/likes.csv and {dir}/artists.csv
func WriteRunExport(r *tasks.RunResult, dir string) (*ExportResult, error) {
	if dir == "" {
		dir = r.Target.DocumentID(false)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{Directory: dir, Files: []string{}}
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		result.Files = append(result.Files, path)
		return nil
	}

	for _, doc := range r.Documents {
		data, err := shared.MarshalJSON(doc, true)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", doc.ID, err)
		}
		if err := write(doc.ID+".json", data); err != nil {
			return nil, err
		}
	}

	if r.Target.Section.Includes(models.SectionLikes) {
		data, err := ExportLikesCSV(r.Likes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate likes CSV: %w", err)
		}
		if err := write("likes.csv", data); err != nil {
			return nil, err
		}
	}

	if r.Target.Section.Includes(models.SectionMusic) {
		data, err := ExportArtistsCSV(r.FilteredArtists)
		if err != nil {
			return nil, fmt.Errorf("failed to generate artists CSV: %w", err)
		}
		if err := write("artists.csv", data); err != nil {
			return nil, err
		}
	}

	return result, nil
}
