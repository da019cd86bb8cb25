package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/skybi/inbox/internal/api/web/session"
	"github.com/skybi/inbox/internal/random"
	"golang.org/x/oauth2"
	"time"
)

//go:embed migrations/*.sql
var migrations embed.FS

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var sessionColumns = []string{
	"session_id",
	"token_hash",
	"subject",
	"display_name",
	"oauth2_token",
	"expires",
}

// Driver represents the PostgreSQL session storage driver
type Driver struct {
	dsn string
	db  *pgxpool.Pool
	now func() time.Time
}

var _ session.Storage = (*Driver)(nil)

// New creates a new empty PostgreSQL session storage driver.
// Use Initialize to open the database connection.
func New(dsn string) *Driver {
	return &Driver{
		dsn: dsn,
		now: time.Now,
	}
}

// Initialize opens the database connection and migrates the database
func (driver *Driver) Initialize(ctx context.Context) error {
	// Perform SQL migrations
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	migrator, err := migrate.NewWithSourceInstance("iofs", source, driver.dsn)
	if err != nil {
		return err
	}
	defer migrator.Close()
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	// Initialize the database connection pool
	pool, err := pgxpool.Connect(ctx, driver.dsn)
	if err != nil {
		return err
	}
	driver.db = pool
	return nil
}

// GetByRawToken retrieves a session by its raw (prior hashing) token
func (driver *Driver) GetByRawToken(ctx context.Context, rawToken string) (*session.Session, error) {
	sql, vals, err := selectActiveByTokenHash(session.HashToken(rawToken), driver.now()).ToSql()
	if err != nil {
		return nil, err
	}

	ses, err := rowToSession(driver.db.QueryRow(ctx, sql, vals...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ses, nil
}

// Create creates a new session
func (driver *Driver) Create(ctx context.Context, create *session.Create) (*session.Session, string, error) {
	rawToken, err := random.String(session.TokenLength, random.CharsetTokens)
	if err != nil {
		return nil, "", err
	}
	ses := &session.Session{
		ID:          uuid.New(),
		TokenHash:   session.HashToken(rawToken),
		OAuth2Token: create.OAuth2Token,
		Subject:     create.Subject,
		DisplayName: create.DisplayName,
		Expires:     create.Expires,
	}

	tokenJSON, err := json.Marshal(ses.OAuth2Token)
	if err != nil {
		return nil, "", err
	}
	sql, vals, err := insertSession(ses, tokenJSON).ToSql()
	if err != nil {
		return nil, "", err
	}
	if _, err := driver.db.Exec(ctx, sql, vals...); err != nil {
		return nil, "", err
	}
	return ses, rawToken, nil
}

// TerminateByRawToken terminates the session identified by the given raw token
func (driver *Driver) TerminateByRawToken(ctx context.Context, rawToken string) error {
	sql, vals, err := deleteByTokenHash(session.HashToken(rawToken)).ToSql()
	if err != nil {
		return err
	}
	_, err = driver.db.Exec(ctx, sql, vals...)
	return err
}

// TerminateExpired terminates all sessions that are expired
func (driver *Driver) TerminateExpired(ctx context.Context) (int, error) {
	sql, vals, err := deleteExpired(driver.now()).ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := driver.db.Exec(ctx, sql, vals...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Close closes the database connection
func (driver *Driver) Close() {
	if driver.db != nil {
		driver.db.Close()
		driver.db = nil
	}
}

// selectActiveByTokenHash selects the session with the given token hash unless it expired at now
func selectActiveByTokenHash(tokenHash string, now time.Time) squirrel.SelectBuilder {
	return psql.Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Where(squirrel.Gt{"expires": now.Unix()})
}

func insertSession(ses *session.Session, tokenJSON []byte) squirrel.InsertBuilder {
	return psql.Insert("sessions").
		Columns(sessionColumns...).
		Values(ses.ID, ses.TokenHash, ses.Subject, ses.DisplayName, string(tokenJSON), ses.Expires)
}

func deleteByTokenHash(tokenHash string) squirrel.DeleteBuilder {
	return psql.Delete("sessions").Where(squirrel.Eq{"token_hash": tokenHash})
}

// deleteExpired deletes every session whose expiry is at or before now
func deleteExpired(now time.Time) squirrel.DeleteBuilder {
	return psql.Delete("sessions").Where(squirrel.LtOrEq{"expires": now.Unix()})
}

func rowToSession(row pgx.Row) (*session.Session, error) {
	ses := new(session.Session)
	var tokenJSON []byte
	if err := row.Scan(&ses.ID, &ses.TokenHash, &ses.Subject, &ses.DisplayName, &tokenJSON, &ses.Expires); err != nil {
		return nil, err
	}
	ses.OAuth2Token = new(oauth2.Token)
	if err := json.Unmarshal(tokenJSON, ses.OAuth2Token); err != nil {
		return nil, err
	}
	return ses, nil
}
