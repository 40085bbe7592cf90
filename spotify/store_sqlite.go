package spotify

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteTokenStore struct {
	db *sqlx.DB
}

func NewSQLiteTokenStore(filePath string) (*SQLiteTokenStore, error) {
	db, err := sqlx.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}

	schema := `
	  create table if not exists spotify_tokens (
	    id integer primary key check (id = 1),
	    access_token text not null,
	    refresh_token text not null,
	    expires_in integer not null,
	    obtained_at timestamp not null
	  );`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteTokenStore{db: db}, nil
}

func (s *SQLiteTokenStore) Save(info TokenInfo) error {
	query := `
	  insert into spotify_tokens (id, access_token, refresh_token, expires_in, obtained_at)
	  values (1, ?, ?, ?, ?)
	  on conflict(id) do update
	     set access_token = excluded.access_token,
	         refresh_token = excluded.refresh_token,
	         expires_in = excluded.expires_in,
	         obtained_at = excluded.obtained_at;`

	_, err := s.db.Exec(query, info.AccessToken, info.RefreshToken,
		info.ExpiresIn, info.ObtainedAt.UTC())
	return err
}

func (s *SQLiteTokenStore) Load() (*TokenInfo, error) {
	query := `
	  select access_token, refresh_token, expires_in, obtained_at
	  from spotify_tokens where id = 1;`

	info := TokenInfo{}
	if err := s.db.Get(&info, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	info.ObtainedAt = info.ObtainedAt.In(time.UTC)
	return &info, nil
}

func (s *SQLiteTokenStore) Close() error {
	return s.db.Close()
}
