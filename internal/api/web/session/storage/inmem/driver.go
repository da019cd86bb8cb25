package inmem

import (
	"context"
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/skybi/inbox/internal/api/web/session"
	"github.com/skybi/inbox/internal/random"
	"time"
)

const tableSessions = "sessions"

var dbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableSessions: {
			Name: tableSessions,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:         "id",
					Unique:       true,
					AllowMissing: false,
					Indexer:      &memdb.StringFieldIndex{Field: "TokenHash"},
				},
			},
		},
	},
}

// Driver represents the in-memory session storage driver built using hashicorp/go-memdb
type Driver struct {
	db  *memdb.MemDB
	now func() time.Time
}

var _ session.Storage = (*Driver)(nil)

// New creates a new empty in-memory session storage driver
func New() (*Driver, error) {
	db, err := memdb.NewMemDB(dbSchema)
	if err != nil {
		return nil, err
	}
	return &Driver{db: db, now: time.Now}, nil
}

// GetByRawToken retrieves a session by its raw (prior hashing) token
func (driver *Driver) GetByRawToken(_ context.Context, rawToken string) (*session.Session, error) {
	txn := driver.db.Txn(false)
	obj, err := txn.First(tableSessions, "id", session.HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	ses := obj.(*session.Session)
	if ses.IsExpired(driver.now()) {
		return nil, nil
	}
	return ses, nil
}

// Create creates a new session
func (driver *Driver) Create(_ context.Context, create *session.Create) (*session.Session, string, error) {
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

	txn := driver.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableSessions, ses); err != nil {
		return nil, "", err
	}
	txn.Commit()

	return ses, rawToken, nil
}

// TerminateByRawToken terminates the session identified by the given raw token
func (driver *Driver) TerminateByRawToken(_ context.Context, rawToken string) error {
	txn := driver.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tableSessions, "id", session.HashToken(rawToken)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// TerminateExpired terminates all sessions that are expired
func (driver *Driver) TerminateExpired(_ context.Context) (int, error) {
	txn := driver.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(tableSessions, "id")
	if err != nil {
		return 0, err
	}

	// Collect first; deleting while iterating would invalidate the iterator
	now := driver.now()
	var expired []*session.Session
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if ses := obj.(*session.Session); ses.IsExpired(now) {
			expired = append(expired, ses)
		}
	}
	for _, ses := range expired {
		if err := txn.Delete(tableSessions, ses); err != nil {
			return 0, err
		}
	}

	txn.Commit()
	return len(expired), nil
}
