package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distractedCoding/party-playlist/internal/domain"
)

const writeRetries = 3

// Postgres is the pgx-backed Store
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects a pool and runs migrations
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	p := &Postgres{pool: pool, logger: logger}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS parties (
          id                      BIGSERIAL PRIMARY KEY,
          code                    TEXT NOT NULL UNIQUE,
          host_id                 TEXT NOT NULL,
          provider_access_token   TEXT NOT NULL DEFAULT '',
          provider_refresh_token  TEXT NOT NULL DEFAULT '',
          provider_token_expiry   TIMESTAMPTZ,
          created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		return err
	}

	if _, err := p.pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS songs (
          id           BIGINT NOT NULL,
          party_id     BIGINT NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
          song_ref     TEXT NOT NULL,
          title        TEXT NOT NULL,
          artist       TEXT NOT NULL DEFAULT '',
          album_art    TEXT NOT NULL DEFAULT '',
          played       BOOLEAN NOT NULL DEFAULT FALSE,
          submitter_id TEXT NOT NULL,
          queued_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (party_id, id)
      )
    `); err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS votes (
          party_id       BIGINT NOT NULL,
          song_id        BIGINT NOT NULL,
          participant_id TEXT NOT NULL,
          direction      TEXT NOT NULL,
          created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (party_id, song_id, participant_id),
          FOREIGN KEY (party_id, song_id) REFERENCES songs(party_id, id) ON DELETE CASCADE
      )
    `)
	return err
}

func (p *Postgres) CreateParty(ctx context.Context, code, hostID string) (*PartyRecord, error) {
	rec := &PartyRecord{Code: code, HostID: hostID}
	err := p.pool.QueryRow(ctx, `
        INSERT INTO parties (code, host_id) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING
        RETURNING id, created_at
    `, code, hostID).Scan(&rec.ID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCodeTaken
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Postgres) PartyByCode(ctx context.Context, code string) (*PartyRecord, error) {
	rec := &PartyRecord{}
	err := p.pool.QueryRow(ctx, `
        SELECT id, code, host_id, created_at FROM parties WHERE code = upper($1)
    `, code).Scan(&rec.ID, &rec.Code, &rec.HostID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Postgres) PartyByID(ctx context.Context, id int64) (*PartyRecord, error) {
	rec := &PartyRecord{}
	err := p.pool.QueryRow(ctx, `
        SELECT id, code, host_id, created_at FROM parties WHERE id = $1
    `, id).Scan(&rec.ID, &rec.Code, &rec.HostID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Postgres) Songs(ctx context.Context, partyID int64) ([]SongRecord, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT id, party_id, song_ref, title, artist, album_art, played, submitter_id, queued_at
        FROM songs WHERE party_id = $1
    `, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []SongRecord
	for rows.Next() {
		var s SongRecord
		if err := rows.Scan(&s.ID, &s.PartyID, &s.SongRef, &s.Title, &s.Artist,
			&s.AlbumArt, &s.Played, &s.SubmitterID, &s.QueuedAt); err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

func (p *Postgres) Votes(ctx context.Context, partyID int64) ([]VoteRecord, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT song_id, participant_id, direction FROM votes WHERE party_id = $1
    `, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []VoteRecord
	for rows.Next() {
		var v VoteRecord
		var dir string
		if err := rows.Scan(&v.SongID, &v.ParticipantID, &dir); err != nil {
			return nil, err
		}
		v.Direction = domain.VoteDirection(dir)
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (p *Postgres) SaveProviderToken(ctx context.Context, partyID int64, tok ProviderToken) error {
	return p.withRetry(ctx, "save provider token", func() error {
		tag, err := p.pool.Exec(ctx, `
            UPDATE parties
            SET provider_access_token = $2, provider_refresh_token = $3, provider_token_expiry = $4
            WHERE id = $1
        `, partyID, tok.AccessToken, tok.RefreshToken, tok.Expiry)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return backoff.Permanent(ErrNotFound)
		}
		return nil
	})
}

func (p *Postgres) ProviderToken(ctx context.Context, partyID int64) (*ProviderToken, error) {
	tok := &ProviderToken{}
	var expiry *time.Time
	err := p.pool.QueryRow(ctx, `
        SELECT provider_access_token, provider_refresh_token, provider_token_expiry
        FROM parties WHERE id = $1
    `, partyID).Scan(&tok.AccessToken, &tok.RefreshToken, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNotFound
	}
	if expiry != nil {
		tok.Expiry = *expiry
	}
	return tok, nil
}

func (p *Postgres) AddSong(ctx context.Context, rec SongRecord) error {
	return p.withRetry(ctx, "add song", func() error {
		_, err := p.pool.Exec(ctx, `
            INSERT INTO songs (id, party_id, song_ref, title, artist, album_art, played, submitter_id, queued_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
            ON CONFLICT (party_id, id) DO NOTHING
        `, rec.ID, rec.PartyID, rec.SongRef, rec.Title, rec.Artist, rec.AlbumArt,
			rec.Played, rec.SubmitterID, rec.QueuedAt)
		return err
	})
}

func (p *Postgres) SaveVote(ctx context.Context, partyID, songID int64, participantID string, dir domain.VoteDirection) error {
	return p.withRetry(ctx, "save vote", func() error {
		_, err := p.pool.Exec(ctx, `
            INSERT INTO votes (party_id, song_id, participant_id, direction)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (party_id, song_id, participant_id)
            DO UPDATE SET direction = EXCLUDED.direction, created_at = now()
        `, partyID, songID, participantID, string(dir))
		return err
	})
}

func (p *Postgres) DeleteVote(ctx context.Context, partyID, songID int64, participantID string) error {
	return p.withRetry(ctx, "delete vote", func() error {
		_, err := p.pool.Exec(ctx, `
            DELETE FROM votes WHERE party_id = $1 AND song_id = $2 AND participant_id = $3
        `, partyID, songID, participantID)
		return err
	})
}

func (p *Postgres) MarkPlayed(ctx context.Context, partyID, songID int64) error {
	return p.withRetry(ctx, "mark played", func() error {
		_, err := p.pool.Exec(ctx, `
            UPDATE songs SET played = TRUE WHERE party_id = $1 AND id = $2
        `, partyID, songID)
		return err
	})
}

func (p *Postgres) RemoveSong(ctx context.Context, partyID, songID int64) error {
	return p.withRetry(ctx, "remove song", func() error {
		_, err := p.pool.Exec(ctx, `
            DELETE FROM songs WHERE party_id = $1 AND id = $2
        `, partyID, songID)
		return err
	})
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// withRetry retries a write a bounded number of times with exponential
// backoff. Exhausting the retries does not roll back the in-memory state;
// the caller logs the durability gap and carries on.
func (p *Postgres) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	err := backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(bo, writeRetries), ctx))
	if err != nil {
		p.logger.Error("persistence write failed after retries", "op", op, "error", err)
	}
	return err
}
