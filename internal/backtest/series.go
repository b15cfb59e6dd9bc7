package backtest

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"arbot/internal/model"
)

// Record is one historical top-of-book observation for a venue.
type Record struct {
	Timestamp time.Time
	Bid       float64
	Ask       float64
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
}

// LoadSeries reads one venue's quote series from a CSV file with a
// timestamp,bid,ask header, sorted ascending by timestamp.
func LoadSeries(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("%s: row %d: expected 3 columns, got %d", path, i+2, len(row))
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i+2, err)
		}
		bid, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: bid: %w", path, i+2, err)
		}
		ask, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: ask: %w", path, i+2, err)
		}
		records = append(records, Record{Timestamp: ts.UTC(), Bid: bid, Ask: ask})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// LoadVenueSeries loads the series file for each venue from dir, following
// the <venue>_<symbol without slash>.csv naming convention. Venues whose file
// is missing or unreadable are skipped with a logged cause.
func LoadVenueSeries(logger *slog.Logger, dir string, venues []string, symbolFor func(venue string) string) map[string][]Record {
	series := make(map[string][]Record)
	for _, venue := range venues {
		symbol := strings.ReplaceAll(symbolFor(venue), "/", "")
		path := filepath.Join(dir, venue+"_"+symbol+".csv")
		records, err := LoadSeries(path)
		if err != nil {
			logger.Error("failed to load historical data", "venue", venue, "path", path, "error", err)
			continue
		}
		series[venue] = records
		logger.Info("loaded historical data", "venue", venue, "records", len(records))
	}
	return series
}

// Row is one synchronized instant across all venues.
type Row struct {
	Timestamp time.Time
	Books     model.Snapshot
}

// Synchronize outer-joins the per-venue series on timestamp, forward-fills
// gaps with each venue's last known quote, and drops any instant where some
// venue still has no quote. The result is strictly time-ordered; replay only
// considers instants where every venue is known.
func Synchronize(series map[string][]Record) []Row {
	if len(series) == 0 {
		return nil
	}

	seen := make(map[time.Time]struct{})
	var axis []time.Time
	for _, records := range series {
		for _, r := range records {
			if _, ok := seen[r.Timestamp]; !ok {
				seen[r.Timestamp] = struct{}{}
				axis = append(axis, r.Timestamp)
			}
		}
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })

	cursors := make(map[string]int, len(series))
	last := make(map[string]Record, len(series))
	filled := make(map[string]bool, len(series))

	var rows []Row
	for _, ts := range axis {
		for venue, records := range series {
			i := cursors[venue]
			for i < len(records) && !records[i].Timestamp.After(ts) {
				last[venue] = records[i]
				filled[venue] = true
				i++
			}
			cursors[venue] = i
		}
		if len(filled) < len(series) {
			continue
		}
		books := make(model.Snapshot, len(series))
		for venue := range series {
			r := last[venue]
			books[venue] = model.TopOfBook{Bid: model.Float(r.Bid), Ask: model.Float(r.Ask)}
		}
		rows = append(rows, Row{Timestamp: ts, Books: books})
	}
	return rows
}
