package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

// uniqueViolation is the SQLSTATE Postgres reports for a unique index clash.
const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		email      VARCHAR(254) UNIQUE NOT NULL,
		password   VARCHAR(255) NOT NULL,
		name       VARCHAR(254) NOT NULL,
		gender     VARCHAR(8)   NOT NULL,
		avatar_url TEXT         NOT NULL DEFAULT '',
		daily_goal INTEGER      NOT NULL,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id                        TEXT PRIMARY KEY,
		account_id                TEXT        NOT NULL,
		access_token              TEXT        NOT NULL,
		refresh_token             TEXT        NOT NULL,
		access_token_valid_until  TIMESTAMPTZ NOT NULL,
		refresh_token_valid_until TIMESTAMPTZ NOT NULL,
		created_at                TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_access_token_idx ON sessions (access_token)`,
	`CREATE INDEX IF NOT EXISTS sessions_account_id_idx ON sessions (account_id)`,
	`CREATE TABLE IF NOT EXISTS water_entries (
		id         TEXT PRIMARY KEY,
		account_id TEXT        NOT NULL,
		amount     INTEGER     NOT NULL,
		time       TIMESTAMPTZ NOT NULL,
		daily_goal INTEGER     NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS water_entries_account_time_idx ON water_entries (account_id, time)`,
}

// NewPostgresPool connects to PostgreSQL and verifies the connection.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables and indexes if they don't exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

// Ids are ObjectID hex strings on every backend so routes can validate them
// the same way.
func newRowID() string {
	return primitive.NewObjectID().Hex()
}

// classifyPg maps a unique violation onto a conflict.
func classifyPg(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperror.NewConflict("Email in use")
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}

// where collects AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(col string, v any) {
	w.args = append(w.args, v)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", col, len(w.args)))
}

func (w *where) String() string {
	return strings.Join(w.conds, " AND ")
}

func accountWhere(f models.AccountFilter) (*where, bool) {
	if f.Empty() {
		return nil, false
	}
	w := &where{}
	if f.ID != "" {
		w.add("id", f.ID)
	}
	if f.Email != "" {
		w.add("email", f.Email)
	}
	return w, true
}

func sessionWhere(f models.SessionFilter) (*where, bool) {
	if f.Empty() {
		return nil, false
	}
	w := &where{}
	if f.ID != "" {
		w.add("id", f.ID)
	}
	if f.AccountID != "" {
		w.add("account_id", f.AccountID)
	}
	if f.AccessToken != "" {
		w.add("access_token", f.AccessToken)
	}
	if f.RefreshToken != "" {
		w.add("refresh_token", f.RefreshToken)
	}
	return w, true
}

// accountAssignments renders u as a SET list; its placeholders continue
// after the ones already in w.
func accountAssignments(u models.AccountUpdate, now time.Time, w *where) string {
	sets := &where{args: w.args}
	sets.add("updated_at", now)
	if u.Email != nil {
		sets.add("email", *u.Email)
	}
	if u.PasswordHash != nil {
		sets.add("password", *u.PasswordHash)
	}
	if u.Name != nil {
		sets.add("name", *u.Name)
	}
	if u.Gender != nil {
		sets.add("gender", string(*u.Gender))
	}
	if u.AvatarURL != nil {
		sets.add("avatar_url", *u.AvatarURL)
	}
	if u.DailyGoal != nil {
		sets.add("daily_goal", *u.DailyGoal)
	}
	w.args = sets.args
	return strings.Join(sets.conds, ", ")
}

const accountColumns = `id, email, password, name, gender, avatar_url, daily_goal, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a      models.Account
		gender string
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &gender, &a.AvatarURL, &a.DailyGoal, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Gender = models.Gender(gender)
	return &a, nil
}

// PostgresAccountStore handles account CRUD against PostgreSQL.
type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountStore(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

func (s *PostgresAccountStore) FindOne(ctx context.Context, filter models.AccountFilter) (*models.Account, error) {
	w, ok := accountWhere(filter)
	if !ok {
		return nil, nil
	}
	a, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+w.String()+` LIMIT 1`, w.args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres find account: %w", err)
	}
	return a, nil
}

func (s *PostgresAccountStore) Create(ctx context.Context, account *models.Account) error {
	id := newRowID()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, account.Email, account.PasswordHash, account.Name, string(account.Gender),
		account.AvatarURL, account.DailyGoal, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return classifyPg(err, "insert account")
	}
	account.ID = id
	return nil
}

func (s *PostgresAccountStore) FindOneAndUpdate(ctx context.Context, filter models.AccountFilter, update models.AccountUpdate) (*models.Account, error) {
	w, ok := accountWhere(filter)
	if !ok {
		return nil, nil
	}
	cond := w.String()
	set := accountAssignments(update, time.Now().UTC(), w)
	a, err := scanAccount(s.pool.QueryRow(ctx,
		`UPDATE accounts SET `+set+` WHERE `+cond+` RETURNING `+accountColumns, w.args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyPg(err, "update account")
	}
	return a, nil
}

func (s *PostgresAccountStore) DeleteOne(ctx context.Context, filter models.AccountFilter) (bool, error) {
	w, ok := accountWhere(filter)
	if !ok {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE `+w.String(), w.args...)
	if err != nil {
		return false, fmt.Errorf("postgres delete account: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const sessionColumns = `id, account_id, access_token, refresh_token, access_token_valid_until, refresh_token_valid_until, created_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.AccountID, &sess.AccessToken, &sess.RefreshToken,
		&sess.AccessTokenValidUntil, &sess.RefreshTokenValidUntil, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertSession(ctx context.Context, q querier, session *models.Session) error {
	id := newRowID()
	_, err := q.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, session.AccountID, session.AccessToken, session.RefreshToken,
		session.AccessTokenValidUntil, session.RefreshTokenValidUntil, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres insert session: %w", err)
	}
	session.ID = id
	return nil
}

// PostgresSessionStore handles session rows in PostgreSQL.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (s *PostgresSessionStore) FindOne(ctx context.Context, filter models.SessionFilter) (*models.Session, error) {
	w, ok := sessionWhere(filter)
	if !ok {
		return nil, nil
	}
	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE `+w.String()+` LIMIT 1`, w.args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres find session: %w", err)
	}
	return sess, nil
}

func (s *PostgresSessionStore) Create(ctx context.Context, session *models.Session) error {
	return insertSession(ctx, s.pool, session)
}

func (s *PostgresSessionStore) DeleteOne(ctx context.Context, filter models.SessionFilter) (bool, error) {
	w, ok := sessionWhere(filter)
	if !ok {
		return false, nil
	}
	// Filters other than the primary key may match several rows; remove one.
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = (SELECT id FROM sessions WHERE `+w.String()+` LIMIT 1)`, w.args...)
	if err != nil {
		return false, fmt.Errorf("postgres delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresSessionStore) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("postgres delete sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Rotate deletes the old row and inserts next in one transaction. The
// DELETE's row lock makes a concurrent rotation of the same pair see zero
// affected rows.
func (s *PostgresSessionStore) Rotate(ctx context.Context, id, refreshToken string, next *models.Session) (bool, error) {
	rotated := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1 AND refresh_token = $2`, id, refreshToken)
		if err != nil {
			return fmt.Errorf("postgres rotate session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if err := insertSession(ctx, tx, next); err != nil {
			return err
		}
		rotated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return rotated, nil
}

const waterColumns = `id, account_id, amount, time, daily_goal, created_at, updated_at`

func scanEntry(row pgx.Row) (*models.WaterEntry, error) {
	var e models.WaterEntry
	err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Time, &e.DailyGoal, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Time = e.Time.UTC()
	return &e, nil
}

// PostgresWaterStore handles water entry rows in PostgreSQL. Every lookup by
// id is scoped to the owning account.
type PostgresWaterStore struct {
	pool *pgxpool.Pool
}

func NewPostgresWaterStore(pool *pgxpool.Pool) *PostgresWaterStore {
	return &PostgresWaterStore{pool: pool}
}

func (s *PostgresWaterStore) Create(ctx context.Context, entry *models.WaterEntry) error {
	id := newRowID()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO water_entries (`+waterColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, entry.AccountID, entry.Amount, entry.Time, entry.DailyGoal, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres insert water entry: %w", err)
	}
	entry.ID = id
	return nil
}

func (s *PostgresWaterStore) FindOneAndUpdate(ctx context.Context, accountID, id string, update models.WaterEntryUpdate) (*models.WaterEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`UPDATE water_entries
		 SET amount = COALESCE($3, amount), time = COALESCE($4, time), updated_at = $5
		 WHERE id = $1 AND account_id = $2
		 RETURNING `+waterColumns,
		id, accountID, update.Amount, update.Time, time.Now().UTC(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres update water entry: %w", err)
	}
	return e, nil
}

func (s *PostgresWaterStore) DeleteOne(ctx context.Context, accountID, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM water_entries WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return false, fmt.Errorf("postgres delete water entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Find returns the entries in r ordered by time, oldest first.
func (s *PostgresWaterStore) Find(ctx context.Context, r models.WaterRange) ([]models.WaterEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+waterColumns+` FROM water_entries
		 WHERE account_id = $1 AND time >= $2 AND time < $3
		 ORDER BY time`,
		r.AccountID, r.From, r.To,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres find water entries: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WaterEntry, error) {
		e, err := scanEntry(row)
		if err != nil {
			return models.WaterEntry{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres scan water entries: %w", err)
	}
	return out, nil
}

func (s *PostgresWaterStore) UpdateGoalInRange(ctx context.Context, r models.WaterRange, goal int) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE water_entries SET daily_goal = $4 WHERE account_id = $1 AND time >= $2 AND time < $3`,
		r.AccountID, r.From, r.To, goal,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres update water goals: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresWaterStore) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM water_entries WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("postgres delete water entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
