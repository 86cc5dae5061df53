package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vpo/internal/media"
	"vpo/internal/services"
)

const trackColumns = "idx, type, codec, language, title, is_default, is_forced, channels, channel_layout, width, height, bit_rate, analysis_json"

// SaveSnapshot upserts a scanned file and replaces its stored tracks.
func (s *Store) SaveSnapshot(ctx context.Context, snap *media.Snapshot) error {
	if snap == nil || snap.Path == "" {
		return services.Wrap(services.ErrValidation, "", "", "snapshot has no path", nil)
	}
	err := s.pool.Transaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		now := formatTime(time.Now())
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files (path, container, size_bytes, duration_seconds, scanned_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET
			   container = excluded.container,
			   size_bytes = excluded.size_bytes,
			   duration_seconds = excluded.duration_seconds,
			   scanned_at = excluded.scanned_at`,
			snap.Path, snap.Container, snap.SizeBytes, snap.Duration, now); err != nil {
			return fmt.Errorf("upsert file: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tracks WHERE file_path = ?", snap.Path); err != nil {
			return fmt.Errorf("clear tracks: %w", err)
		}
		for _, track := range snap.Tracks {
			var analysisJSON any
			if track.Analysis != nil {
				encoded, encodeErr := json.Marshal(track.Analysis)
				if encodeErr != nil {
					return fmt.Errorf("encode track analysis: %w", encodeErr)
				}
				analysisJSON = string(encoded)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tracks (file_path, "+trackColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				snap.Path, track.Index, string(track.Type), track.Codec, track.Language, track.Title,
				boolToInt(track.Default), boolToInt(track.Forced), track.Channels, track.ChannelLayout,
				track.Width, track.Height, track.BitRate, analysisJSON); err != nil {
				return fmt.Errorf("insert track: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Path, err)
	}
	return nil
}

// Snapshot loads the stored snapshot for a path. Paths that were never
// scanned return a not-found error; batch runs report them as skipped
// rather than failed.
func (s *Store) Snapshot(ctx context.Context, path string) (*media.Snapshot, error) {
	var snap *media.Snapshot
	err := s.pool.ExecuteRead(ctx, func(ctx context.Context, db *sql.DB) error {
		row := db.QueryRowContext(ctx, "SELECT container, size_bytes, duration_seconds FROM files WHERE path = ?", path)
		var (
			container string
			sizeBytes int64
			duration  float64
		)
		if err := row.Scan(&container, &sizeBytes, &duration); err != nil {
			return err
		}
		loaded := &media.Snapshot{Path: path, Container: container, SizeBytes: sizeBytes, Duration: duration}

		rows, queryErr := db.QueryContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE file_path = ? ORDER BY idx", path)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			track, scanErr := scanTrack(rows)
			if scanErr != nil {
				return scanErr
			}
			loaded.Tracks = append(loaded.Tracks, track)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		snap = loaded
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("%s has not been scanned", path), nil)
	}
	if err != nil {
		// Anything else is a scanner-side failure as far as callers are
		// concerned: the file has a record we cannot turn into a snapshot.
		return nil, services.Wrap(services.ErrScan, "", "", fmt.Sprintf("load snapshot %s", path), err)
	}
	return snap, nil
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (media.Track, error) {
	var (
		idx           int
		trackType     string
		codec         string
		languageCode  string
		title         string
		isDefault     int
		isForced      int
		channels      int
		channelLayout string
		width         int
		height        int
		bitRate       int64
		analysisRaw   sql.NullString
	)

	if err := scanner.Scan(
		&idx,
		&trackType,
		&codec,
		&languageCode,
		&title,
		&isDefault,
		&isForced,
		&channels,
		&channelLayout,
		&width,
		&height,
		&bitRate,
		&analysisRaw,
	); err != nil {
		return media.Track{}, err
	}

	track := media.Track{
		Index:         idx,
		Type:          media.TrackType(trackType),
		Codec:         codec,
		Language:      languageCode,
		Title:         title,
		Default:       isDefault != 0,
		Forced:        isForced != 0,
		Channels:      channels,
		ChannelLayout: channelLayout,
		Width:         width,
		Height:        height,
		BitRate:       bitRate,
	}
	if analysisRaw.Valid && analysisRaw.String != "" {
		var analysis media.TrackAnalysis
		if err := json.Unmarshal([]byte(analysisRaw.String), &analysis); err != nil {
			return media.Track{}, fmt.Errorf("decode track analysis: %w", err)
		}
		track.Analysis = &analysis
	}
	return track, nil
}

// SetTrackAnalysis records transcription-derived findings for one track
// of a scanned file. Later evaluations see the enriched snapshot.
func (s *Store) SetTrackAnalysis(ctx context.Context, path string, trackIndex int, analysis *media.TrackAnalysis) error {
	encoded, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode track analysis: %w", err)
	}
	var affected int64
	err = s.pool.ExecuteWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		res, execErr := db.ExecContext(ctx,
			"UPDATE tracks SET analysis_json = ? WHERE file_path = ? AND idx = ?",
			string(encoded), path, trackIndex)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("set track analysis: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("%s track #%d", path, trackIndex), nil)
	}
	return nil
}

// ImportReport parses a probe report and stores the resulting snapshot.
// fallbackPath names the file when the report itself does not.
func (s *Store) ImportReport(ctx context.Context, data []byte, fallbackPath string) (*media.Snapshot, error) {
	report, err := media.ParseReport(data)
	if err != nil {
		return nil, services.Wrap(services.ErrScan, "", "", "unusable probe report", err)
	}
	snap := report.Snapshot(fallbackPath)
	if snap.Path == "" {
		return nil, services.Wrap(services.ErrValidation, "", "", "probe report names no file and no path was given", nil)
	}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// AnalysisImport reports the fate of one analysis manifest entry. Err is
// nil when the entry was applied; otherwise it carries the classified
// failure and Detail its rendered form.
type AnalysisImport struct {
	File    string `json:"file"`
	Track   int    `json:"track"`
	Applied bool   `json:"applied"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

// ImportAnalysis applies a transcription results manifest entry by entry.
// Entries where the tool reported a failure, or that name an unknown
// file or track, are recorded against that entry and do not block the
// rest; only an unusable manifest fails the import as a whole.
func (s *Store) ImportAnalysis(ctx context.Context, data []byte) ([]AnalysisImport, error) {
	results, err := media.ParseAnalysisResults(data)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "", "", "unusable analysis manifest", err)
	}

	imports := make([]AnalysisImport, 0, len(results))
	for _, result := range results {
		entry := AnalysisImport{File: result.File, Track: result.Track}
		switch {
		case result.File == "":
			entry.Err = services.Wrap(services.ErrValidation, "", "", "analysis entry names no file", nil)
		case result.Error != "":
			entry.Err = services.Wrap(services.ErrExternalTool, "", "",
				fmt.Sprintf("%s track #%d", result.File, result.Track), errors.New(result.Error))
		case result.Analysis == nil:
			entry.Err = services.Wrap(services.ErrValidation, "", "",
				fmt.Sprintf("%s track #%d has neither analysis nor error", result.File, result.Track), nil)
		default:
			entry.Err = s.SetTrackAnalysis(ctx, result.File, result.Track, result.Analysis)
		}
		if entry.Err != nil {
			entry.Detail = entry.Err.Error()
		} else {
			entry.Applied = true
		}
		imports = append(imports, entry)
	}
	return imports, nil
}

// Scanner returns a media.Scanner backed by stored snapshots.
func (s *Store) Scanner() media.Scanner {
	return storeScanner{store: s}
}

type storeScanner struct {
	store *Store
}

func (sc storeScanner) Scan(ctx context.Context, path string) (*media.Snapshot, error) {
	return sc.store.Snapshot(ctx, path)
}
