// Package sqlite stores forests in a local SQLite database. It is the
// default store for the API server and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/schema"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schemaSQL string

// migrations are append-only; schema.sql is version 1
var migrations = []schema.Migration{
	{Version: 1, Description: "initial schema", Up: schema.Exec(schemaSQL)},
	{Version: 2, Description: "persist sibling order of edges", Up: schema.Exec(
		`ALTER TABLE node_edges ADD COLUMN sort_order INTEGER NOT NULL DEFAULT 0`)},
}

// ForestRepository is a ports.ForestRepository on SQLite
type ForestRepository struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path and migrates it to the
// latest schema. Foreign keys and the busy timeout are set per
// connection via the DSN.
func Open(path string, logger *zap.Logger) (*ForestRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY on lock upgrades
	conn.SetMaxOpenConns(1)

	migrator, err := schema.NewMigrator(conn, schema.UserVersion{}, logger, migrations...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := migrator.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.Info("SQLite store opened", zap.String("path", path), zap.Int("schemaVersion", migrator.Latest()))
	return &ForestRepository{conn: conn, logger: logger}, nil
}

// Close closes the database connection
func (r *ForestRepository) Close() error {
	return r.conn.Close()
}

// Ping checks that the database answers
func (r *ForestRepository) Ping(ctx context.Context) error {
	return r.conn.PingContext(ctx)
}

// NextID increments the named sequence in one statement
func (r *ForestRepository) NextID(ctx context.Context, seq aggregates.Sequence) (int64, error) {
	var v int64
	err := r.conn.QueryRowContext(ctx,
		`INSERT INTO sequences (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`, string(seq),
	).Scan(&v)
	if err != nil {
		return 0, mapError("next id", err)
	}
	return v, nil
}

// Load reads the user's nodes, the edges between them and the records
// they reference in one read transaction
func (r *ForestRepository) Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("begin load", err)
	}
	defer tx.Rollback()

	nodes, err := loadNodes(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	edges, err := loadEdges(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	skills, err := loadSkills(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := loadGroups(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Loaded forest from SQLite",
		zap.String("userID", userID.String()),
		zap.Int("nodeCount", len(nodes)),
		zap.Int("edgeCount", len(edges)),
	)
	return aggregates.ReconstructForest(userID, nodes, edges, skills, groups), nil
}

func loadNodes(ctx context.Context, tx *sql.Tx, userID valueobjects.UserID) ([]entities.Node, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, user_id, node_type, skill_id, group_id, show_in_graph, show_in_list, sort_order, created_at, updated_at
		 FROM nodes WHERE user_id = ? ORDER BY id`, int64(userID))
	if err != nil {
		return nil, mapError("load nodes", err)
	}
	defer rows.Close()

	var out []entities.Node
	for rows.Next() {
		var (
			n                   entities.Node
			kind                string
			skillID, groupID    sql.NullInt64
			created, updated    string
			showGraph, showList bool
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &skillID, &groupID, &showGraph, &showList, &n.SortOrder, &created, &updated); err != nil {
			return nil, mapError("scan node", err)
		}
		var sid *valueobjects.SkillID
		var gid *valueobjects.GroupID
		if skillID.Valid {
			v := valueobjects.SkillID(skillID.Int64)
			sid = &v
		}
		if groupID.Valid {
			v := valueobjects.GroupID(groupID.Int64)
			gid = &v
		}
		variant, err := entities.VariantFromParts(entities.NodeKind(kind), sid, gid)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", n.ID, err)
		}
		n.Variant = variant
		n.ShowInGraph, n.ShowInList = showGraph, showList
		n.CreatedAt, n.UpdatedAt = parseTime(created), parseTime(updated)
		out = append(out, n)
	}
	return out, rows.Err()
}

func loadEdges(ctx context.Context, tx *sql.Tx, userID valueobjects.UserID) ([]entities.Edge, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT e.type, e.parent_id, e.child_id, e.sort_order
		 FROM node_edges e
		 JOIN nodes p ON p.id = e.parent_id
		 JOIN nodes c ON c.id = e.child_id
		 WHERE p.user_id = ? AND c.user_id = ?
		 ORDER BY e.type, e.parent_id, e.child_id`, int64(userID), int64(userID))
	if err != nil {
		return nil, mapError("load edges", err)
	}
	defer rows.Close()

	var out []entities.Edge
	for rows.Next() {
		var e entities.Edge
		var typ string
		if err := rows.Scan(&typ, &e.ParentID, &e.ChildID, &e.SortOrder); err != nil {
			return nil, mapError("scan edge", err)
		}
		e.Type = entities.EdgeType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func loadSkills(ctx context.Context, tx *sql.Tx, userID valueobjects.UserID) ([]entities.Skill, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT s.id, s.concept_id, s.title, s.rating, s.status, s.first_achieved_at, s.created_at, s.updated_at
		 FROM skills s JOIN nodes n ON n.skill_id = s.id
		 WHERE n.user_id = ? ORDER BY s.id`, int64(userID))
	if err != nil {
		return nil, mapError("load skills", err)
	}
	defer rows.Close()

	var out []entities.Skill
	for rows.Next() {
		var (
			s                entities.Skill
			concept          sql.NullInt64
			status           string
			achieved         sql.NullString
			created, updated string
		)
		if err := rows.Scan(&s.ID, &concept, &s.Title, &s.Rating, &status, &achieved, &created, &updated); err != nil {
			return nil, mapError("scan skill", err)
		}
		if concept.Valid {
			v := concept.Int64
			s.ConceptID = &v
		}
		if achieved.Valid {
			t := parseTime(achieved.String)
			s.FirstAchievedAt = &t
		}
		s.Status = valueobjects.SkillStatus(status)
		s.CreatedAt, s.UpdatedAt = parseTime(created), parseTime(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

func loadGroups(ctx context.Context, tx *sql.Tx, userID valueobjects.UserID) ([]entities.Group, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT g.id, g.label, g.description, g.created_at, g.updated_at
		 FROM skill_groups g JOIN nodes n ON n.group_id = g.id
		 WHERE n.user_id = ? ORDER BY g.id`, int64(userID))
	if err != nil {
		return nil, mapError("load groups", err)
	}
	defer rows.Close()

	var out []entities.Group
	for rows.Next() {
		var (
			g                entities.Group
			desc             sql.NullString
			created, updated string
		)
		if err := rows.Scan(&g.ID, &g.Label, &desc, &created, &updated); err != nil {
			return nil, mapError("scan group", err)
		}
		if desc.Valid {
			v := desc.String
			g.Description = &v
		}
		g.CreatedAt, g.UpdatedAt = parseTime(created), parseTime(updated)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Save applies every pending change in one transaction. Foreign keys
// are deferred, so change order does not matter.
func (r *ForestRepository) Save(ctx context.Context, forest *aggregates.Forest) error {
	changes := forest.Changes()
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin save", err)
	}
	defer tx.Rollback()

	for _, c := range changes {
		if err := apply(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return mapError("commit", err)
	}

	r.logger.Debug("Saved forest to SQLite",
		zap.String("userID", forest.UserID().String()),
		zap.Int("changes", len(changes)),
	)
	forest.MarkCommitted()
	return nil
}

func apply(ctx context.Context, tx *sql.Tx, c aggregates.Change) error {
	del := c.Op == aggregates.OpDelete
	var err error
	switch {
	case c.Node != nil && del:
		_, err = tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, int64(c.Node.ID))
	case c.Node != nil:
		err = upsertNode(ctx, tx, *c.Node)
	case c.Edge != nil && del:
		_, err = tx.ExecContext(ctx, `DELETE FROM node_edges WHERE type = ? AND parent_id = ? AND child_id = ?`,
			string(c.Edge.EffectiveType()), int64(c.Edge.ParentID), int64(c.Edge.ChildID))
	case c.Edge != nil:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO node_edges (type, parent_id, child_id, sort_order) VALUES (?, ?, ?, ?)
			 ON CONFLICT(type, parent_id, child_id) DO UPDATE SET sort_order = excluded.sort_order`,
			string(c.Edge.EffectiveType()), int64(c.Edge.ParentID), int64(c.Edge.ChildID), c.Edge.SortOrder)
	case c.Skill != nil && del:
		_, err = tx.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, int64(c.Skill.ID))
	case c.Skill != nil:
		err = upsertSkill(ctx, tx, *c.Skill)
	case c.Group != nil && del:
		_, err = tx.ExecContext(ctx, `DELETE FROM skill_groups WHERE id = ?`, int64(c.Group.ID))
	case c.Group != nil:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO skill_groups (id, label, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET label = excluded.label, description = excluded.description, updated_at = excluded.updated_at`,
			int64(c.Group.ID), c.Group.Label, c.Group.Description, formatTime(c.Group.CreatedAt), formatTime(c.Group.UpdatedAt))
	}
	if err != nil {
		return mapError("apply change", err)
	}
	return nil
}

func upsertNode(ctx context.Context, tx *sql.Tx, n entities.Node) error {
	var skillID, groupID sql.NullInt64
	switch v := n.Variant.(type) {
	case entities.SkillRef:
		skillID = sql.NullInt64{Int64: int64(v.SkillID), Valid: true}
	case entities.GroupRef:
		groupID = sql.NullInt64{Int64: int64(v.GroupID), Valid: true}
	default:
		return fmt.Errorf("node %d has no variant", n.ID)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO nodes (id, user_id, node_type, skill_id, group_id, show_in_graph, show_in_list, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   show_in_graph = excluded.show_in_graph,
		   show_in_list = excluded.show_in_list,
		   sort_order = excluded.sort_order,
		   updated_at = excluded.updated_at`,
		int64(n.ID), int64(n.UserID), string(n.Variant.Kind()), skillID, groupID,
		n.ShowInGraph, n.ShowInList, n.SortOrder, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	return err
}

func upsertSkill(ctx context.Context, tx *sql.Tx, s entities.Skill) error {
	var achieved sql.NullString
	if s.FirstAchievedAt != nil {
		achieved = sql.NullString{String: formatTime(*s.FirstAchievedAt), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO skills (id, concept_id, title, rating, status, first_achieved_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   concept_id = excluded.concept_id,
		   title = excluded.title,
		   rating = excluded.rating,
		   status = excluded.status,
		   first_achieved_at = excluded.first_achieved_at,
		   updated_at = excluded.updated_at`,
		int64(s.ID), s.ConceptID, s.Title, int(s.Rating), string(s.Status), achieved,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mapError marks lock contention as a storage outage and everything else
// as a database failure. Context errors pass through.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isBusy(err) {
		return pkgerrors.ErrStorageUnavailable(err)
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func isBusy(err error) bool {
	var e *msqlite.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
