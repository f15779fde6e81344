package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SegmentStore = (*SegmentStore)(nil)

// SegmentStore implements driven.SegmentStore using PostgreSQL.
// Embeddings are stored as REAL[] next to the segment text.
type SegmentStore struct {
	db *DB
}

// NewSegmentStore creates a new SegmentStore
func NewSegmentStore(db *DB) *SegmentStore {
	return &SegmentStore{db: db}
}

// SaveVideo creates or updates video metadata
func (s *SegmentStore) SaveVideo(ctx context.Context, video *domain.VideoMetadata) error {
	query := `
		INSERT INTO video_metadata (video_id, title, description, thumbnail_url, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (video_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			thumbnail_url = EXCLUDED.thumbnail_url,
			fetched_at = EXCLUDED.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query,
		video.VideoID,
		video.Title,
		video.Description,
		video.ThumbnailURL,
		video.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("save video %s: %w", video.VideoID, err)
	}
	return nil
}

// GetVideo retrieves video metadata by ID
func (s *SegmentStore) GetVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	query := `
		SELECT video_id, title, description, thumbnail_url, fetched_at
		FROM video_metadata
		WHERE video_id = $1
	`
	var v domain.VideoMetadata
	err := s.db.QueryRowContext(ctx, query, videoID).Scan(
		&v.VideoID,
		&v.Title,
		&v.Description,
		&v.ThumbnailURL,
		&v.FetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	return &v, nil
}

// ReplaceSegments swaps the stored pass for (videoID, target) in one
// transaction. Rows of an earlier pass are removed before the new ones are
// written, so a shorter pass leaves no stale chunks behind.
func (s *SegmentStore) ReplaceSegments(ctx context.Context, videoID, target string, segments []*domain.ClosedSegment) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteSegmentsQuery, videoID, target); err != nil {
			return fmt.Errorf("clear segments %s: %w", videoID, err)
		}
		if len(segments) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, insertSegmentQuery)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, seg := range segments {
			subs, err := marshalSubtitles(seg.Subtitles)
			if err != nil {
				return err
			}
			_, err = stmt.ExecContext(ctx,
				videoID,
				target,
				seg.ChunkID,
				seg.StartTime,
				seg.EndTime,
				seg.Text,
				pq.Array(seg.Embedding),
				seg.Similarity,
				seg.Download,
				subs,
				seg.FirstSnippet,
				seg.LastSnippet,
			)
			if err != nil {
				return fmt.Errorf("save segment %s/%d: %w", videoID, seg.ChunkID, err)
			}
		}
		return nil
	})
}

const (
	deleteSegmentsQuery = `DELETE FROM video_segments WHERE video_id = $1 AND target = $2`

	insertSegmentQuery = `
		INSERT INTO video_segments (
			video_id, target, chunk_id, start_time, end_time, text, embedding,
			similarity, download, subtitles, first_snippet, last_snippet
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
)

// ListSegments returns a video's segments ordered by target, then chunk_id.
// An empty target lists every stored pass.
func (s *SegmentStore) ListSegments(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error) {
	query := `
		SELECT video_id, target, chunk_id, start_time, end_time, text, embedding,
		       similarity, download, subtitles, first_snippet, last_snippet
		FROM video_segments
		WHERE video_id = $1 AND ($2::text = '' OR target = $2::text)
		ORDER BY target ASC, chunk_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, videoID, target)
	if err != nil {
		return nil, fmt.Errorf("list segments %s: %w", videoID, err)
	}
	defer rows.Close()

	var segments []*domain.ClosedSegment
	for rows.Next() {
		var seg domain.ClosedSegment
		var embedding pq.Float32Array
		var subs []byte
		err := rows.Scan(
			&seg.VideoID,
			&seg.Target,
			&seg.ChunkID,
			&seg.StartTime,
			&seg.EndTime,
			&seg.Text,
			&embedding,
			&seg.Similarity,
			&seg.Download,
			&subs,
			&seg.FirstSnippet,
			&seg.LastSnippet,
		)
		if err != nil {
			return nil, err
		}
		seg.Embedding = []float32(embedding)
		if seg.Subtitles, err = unmarshalSubtitles(subs); err != nil {
			return nil, err
		}
		segments = append(segments, &seg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

func marshalSubtitles(subs []domain.SubtitleEntry) ([]byte, error) {
	if subs == nil {
		subs = []domain.SubtitleEntry{}
	}
	data, err := json.Marshal(subs)
	if err != nil {
		return nil, fmt.Errorf("marshal subtitles: %w", err)
	}
	return data, nil
}

func unmarshalSubtitles(data []byte) ([]domain.SubtitleEntry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var subs []domain.SubtitleEntry
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("unmarshal subtitles: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return subs, nil
}
