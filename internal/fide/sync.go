package fide

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/config"
	"github.com/echecs92/chess-sync/internal/fetch"
	"github.com/echecs92/chess-sync/internal/metrics"
	"github.com/echecs92/chess-sync/internal/storage"
)

// Syncer runs the whole official-files pipeline: download page, players
// list ingestion, archive indexing and the three JSON documents.
type Syncer struct {
	cfg      config.FIDEConfig
	dataDir  string
	basePath string
	client   *fetch.Client
	log      *zap.Logger
}

func NewSyncer(cfg config.FIDEConfig, out config.OutputConfig, client *fetch.Client, log *zap.Logger) *Syncer {
	return &Syncer{
		cfg:      cfg,
		dataDir:  out.DataDir,
		basePath: out.BasePath,
		client:   client,
		log:      log,
	}
}

// Result summarizes one sync run.
type Result struct {
	TotalPlayers       int
	ParsedRows         int
	SkippedRows        int
	RawLines           int
	ArchivePeriods     int
	DownloadedArchives int
}

type parseOutcome struct {
	shardFiles []string
	total      int
	parsed     int
	skipped    int
	rawLines   int
	stats      *StatsAccumulator
}

// manifest document shapes, field names match the published contract.

type manifestSources struct {
	DownloadPage       string `json:"downloadPage"`
	ArchiveEndpoint    string `json:"archiveEndpoint"`
	PlayersListTxt     string `json:"playersListTxt"`
	PlayersListXml     string `json:"playersListXml"`
	StandardCurrentTxt string `json:"standardCurrentTxt"`
	RapidCurrentTxt    string `json:"rapidCurrentTxt"`
	BlitzCurrentTxt    string `json:"blitzCurrentTxt"`
	FetchedAt          string `json:"fetchedAt"`
}

type schemaLegend struct {
	ID string `json:"id"`
	N  string `json:"n"`
	F  string `json:"f"`
	Sx string `json:"sx"`
	T  string `json:"t"`
	Wt string `json:"wt"`
	Ot string `json:"ot"`
	Ft string `json:"ft"`
	Sr string `json:"sr"`
	Sg string `json:"sg"`
	Sk string `json:"sk"`
	Rr string `json:"rr"`
	Rg string `json:"rg"`
	Rk string `json:"rk"`
	Br string `json:"br"`
	Bg string `json:"bg"`
	Bk string `json:"bk"`
	By string `json:"by"`
	Fl string `json:"fl"`
}

type manifestStats struct {
	ParsedRows     int  `json:"parsedRows"`
	SkippedRows    int  `json:"skippedRows"`
	RawLines       int  `json:"rawLines"`
	MaxRowsApplied *int `json:"maxRowsApplied"`
}

// DownloadedArchive records one archive zip fetched to disk.
type DownloadedArchive struct {
	Period string `json:"period"`
	Kind   string `json:"kind"`
	Format string `json:"format"`
	URL    string `json:"url"`
	Path   string `json:"path"`
}

type manifestArchives struct {
	Index             string              `json:"index"`
	DownloadedPeriods []DownloadedArchive `json:"downloadedPeriods"`
}

type manifestRankings struct {
	StatsIndex string `json:"statsIndex"`
}

type manifest struct {
	Version      int              `json:"version"`
	Updated      string           `json:"updated"`
	Provider     string           `json:"provider"`
	Mode         string           `json:"mode"`
	TotalPlayers int              `json:"totalPlayers"`
	BasePath     string           `json:"basePath"`
	Shards       []string         `json:"shards"`
	Sources      manifestSources  `json:"sources"`
	Schema       schemaLegend     `json:"schema"`
	Stats        manifestStats    `json:"stats"`
	Archives     manifestArchives `json:"archives"`
	Rankings     manifestRankings `json:"rankings"`
}

// ArchivePeriodEntry is one period of archives.json with its links.
type ArchivePeriodEntry struct {
	Period string       `json:"period"`
	Label  string       `json:"label"`
	Links  ArchiveLinks `json:"links"`
}

type archivesIndex struct {
	Version  int                  `json:"version"`
	Updated  string               `json:"updated"`
	Provider string               `json:"provider"`
	Source   string               `json:"source"`
	Periods  []ArchivePeriodEntry `json:"periods"`
}

// Run executes the full sync and writes the dataset under
// <dataDir>/fide-players.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	outputRoot := filepath.Join(s.dataDir, "fide-players")
	updatedISO := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	s.log.Info("fetching download page", zap.String("url", s.cfg.DownloadPageURL))
	pageHTML, err := s.client.Text(ctx, s.cfg.DownloadPageURL, fetch.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("download page: %w", err)
	}
	links := ParseDownloadLinks(pageHTML)
	periods := ParseArchivePeriods(pageHTML)

	playersURL := links.PlayersTxt
	if playersURL == "" {
		playersURL = s.cfg.DefaultPlayersURL
	}
	if playersURL == "" {
		return nil, fmt.Errorf("players list link missing from download page")
	}

	tmpDir, err := os.MkdirTemp("", "chess-sync-fide-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	zipPath := filepath.Join(tmpDir, "players_list.zip")
	s.log.Info("downloading players list", zap.String("url", playersURL))
	if err := s.client.Download(ctx, playersURL, zipPath, fetch.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("download players list: %w", err)
	}

	parseStart := time.Now()
	outcome, err := s.parseZip(zipPath, filepath.Join(outputRoot, "by-id"), updatedISO)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("fide_parse", time.Since(parseStart))
	metrics.CountRecords("fide_player", outcome.total)

	if s.cfg.MaxRows == 0 && outcome.total < s.cfg.MinPlausiblePlayers {
		return nil, fmt.Errorf("parsed player volume looks wrong (%d), sync aborted", outcome.total)
	}

	s.log.Info("collecting archive links", zap.Int("periods", len(periods)))
	archiveEntries := make([]ArchivePeriodEntry, 0, len(periods))
	for _, period := range periods {
		entry := ArchivePeriodEntry{Period: period.Value, Label: period.Label}
		periodURL := s.cfg.ArchiveEndpoint + url.QueryEscape(period.Value)
		if html, err := s.client.Text(ctx, periodURL, fetch.DefaultOptions()); err == nil {
			entry.Links = ParseArchiveLinks(html)
		} else {
			s.log.Warn("archive period page unavailable",
				zap.String("period", period.Value), zap.Error(err))
		}
		archiveEntries = append(archiveEntries, entry)
	}

	downloaded := s.downloadArchives(ctx, outputRoot, selectArchivePeriods(archiveEntries, s.cfg.ArchivePeriods))

	statsPayload := outcome.stats.Payload(updatedISO, playersURL)

	var maxRowsApplied *int
	if s.cfg.MaxRows > 0 {
		maxRowsApplied = &s.cfg.MaxRows
	}
	doc := manifest{
		Version:      1,
		Updated:      updatedISO,
		Provider:     "FIDE",
		Mode:         "official-files",
		TotalPlayers: outcome.total,
		BasePath:     s.basePath + "fide-players/by-id/",
		Shards:       outcome.shardFiles,
		Sources: manifestSources{
			DownloadPage:       s.cfg.DownloadPageURL,
			ArchiveEndpoint:    s.cfg.ArchiveEndpoint,
			PlayersListTxt:     playersURL,
			PlayersListXml:     links.PlayersXml,
			StandardCurrentTxt: links.StandardTxt,
			RapidCurrentTxt:    links.RapidTxt,
			BlitzCurrentTxt:    links.BlitzTxt,
			FetchedAt:          updatedISO,
		},
		Schema: schemaLegend{
			ID: "FIDE ID", N: "name", F: "federation", Sx: "sex",
			T: "title", Wt: "women_title", Ot: "other_title", Ft: "foa_title",
			Sr: "standard_rating", Sg: "standard_games", Sk: "standard_k",
			Rr: "rapid_rating", Rg: "rapid_games", Rk: "rapid_k",
			Br: "blitz_rating", Bg: "blitz_games", Bk: "blitz_k",
			By: "birth_year", Fl: "flag",
		},
		Stats: manifestStats{
			ParsedRows:     outcome.parsed,
			SkippedRows:    outcome.skipped,
			RawLines:       outcome.rawLines,
			MaxRowsApplied: maxRowsApplied,
		},
		Archives: manifestArchives{
			Index:             s.basePath + "fide-players/archives.json",
			DownloadedPeriods: downloaded,
		},
		Rankings: manifestRankings{
			StatsIndex: s.basePath + "fide-players/rank-stats.json",
		},
	}
	index := archivesIndex{
		Version:  1,
		Updated:  updatedISO,
		Provider: "FIDE",
		Source:   s.cfg.DownloadPageURL,
		Periods:  archiveEntries,
	}

	if err := storage.WriteJSON(filepath.Join(outputRoot, "manifest.json"), doc); err != nil {
		return nil, err
	}
	if err := storage.WriteJSON(filepath.Join(outputRoot, "archives.json"), index); err != nil {
		return nil, err
	}
	if err := storage.WriteJSON(filepath.Join(outputRoot, "rank-stats.json"), statsPayload); err != nil {
		return nil, err
	}

	s.log.Info("sync completed",
		zap.Int("players", outcome.total),
		zap.Int("archive_periods", len(archiveEntries)),
		zap.Int("archive_files", len(downloaded)),
	)
	return &Result{
		TotalPlayers:       outcome.total,
		ParsedRows:         outcome.parsed,
		SkippedRows:        outcome.skipped,
		RawLines:           outcome.rawLines,
		ArchivePeriods:     len(archiveEntries),
		DownloadedArchives: len(downloaded),
	}, nil
}

// parseZip streams the fixed-width list out of the zip straight into the
// shard writers.
func (s *Syncer) parseZip(zipPath, shardsDir, updatedISO string) (*parseOutcome, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer reader.Close()

	var entry *zip.File
	for _, f := range reader.File {
		if !f.FileInfo().IsDir() {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%s holds no file entry", zipPath)
	}
	src, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	writers, err := NewShardWriters(shardsDir, updatedISO, s.cfg.FlushBytes)
	if err != nil {
		return nil, err
	}
	stats := NewStatsAccumulator(NewContinentMap())

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var schema *Schema
	outcome := &parseOutcome{stats: stats}
	for scanner.Scan() {
		line := scanner.Text()
		if schema == nil {
			schema, err = ParseHeader(line)
			if err != nil {
				return nil, err
			}
			continue
		}
		if s.cfg.MaxRows > 0 && outcome.parsed >= s.cfg.MaxRows {
			break
		}
		outcome.rawLines++
		record := ParseRow(line, schema)
		if record == nil {
			outcome.skipped++
			continue
		}
		stats.Accumulate(record)
		outcome.parsed++
		if err := writers.Append(record); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read players list: %w", err)
	}
	if schema == nil {
		return nil, &HeaderError{Header: ""}
	}

	outcome.shardFiles, outcome.total, err = writers.Finalize()
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// selectArchivePeriods applies the periods knob: "all", a positive count,
// or anything else for none.
func selectArchivePeriods(entries []ArchivePeriodEntry, raw string) []ArchivePeriodEntry {
	if len(entries) == 0 {
		return nil
	}
	if raw == "all" {
		return entries
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return nil
	}
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

func (s *Syncer) downloadArchives(ctx context.Context, outputRoot string, entries []ArchivePeriodEntry) []DownloadedArchive {
	downloaded := []DownloadedArchive{}
	formats := []string{"txt"}
	if s.cfg.IncludeArchiveXML {
		formats = append(formats, "xml")
	}
	for _, entry := range entries {
		folder := filepath.Join(outputRoot, "archives", PeriodFolder(entry.Period))
		if err := os.MkdirAll(folder, 0o755); err != nil {
			s.log.Warn("archive folder", zap.String("period", entry.Period), zap.Error(err))
			continue
		}
		kinds := []struct {
			name  string
			links FormatLinks
		}{
			{"standard", entry.Links.Standard},
			{"rapid", entry.Links.Rapid},
			{"blitz", entry.Links.Blitz},
		}
		for _, kind := range kinds {
			for _, format := range formats {
				url := kind.links.Txt
				if format == "xml" {
					url = kind.links.Xml
				}
				if url == "" {
					continue
				}
				target := filepath.Join(folder, kind.name+"-"+format+".zip")
				if err := s.client.Download(ctx, url, target, fetch.DefaultOptions()); err != nil {
					s.log.Warn("archive download failed",
						zap.String("period", entry.Period),
						zap.String("kind", kind.name),
						zap.String("format", format),
						zap.Error(err),
					)
					continue
				}
				downloaded = append(downloaded, DownloadedArchive{
					Period: entry.Period,
					Kind:   kind.name,
					Format: format,
					URL:    url,
					Path:   target,
				})
			}
		}
	}
	return downloaded
}
