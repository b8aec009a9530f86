package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"

	"github.com/google/uuid"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"

	// sqliteTimeLayout is fixed width so TEXT ordering matches time ordering
	sqliteTimeLayout = "2006-01-02 15:04:05.000000000"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// sqlStore holds the table operations shared by the Postgres and SQLite adapters.
// Queries are written with '?' placeholders and rebound per dialect.
type sqlStore struct {
	db        *sql.DB
	dialect   string
	scope     func(ctx context.Context, fn func(q querier) error) error
	translate func(err error, what string) error
}

func (s *sqlStore) run(ctx context.Context, fn func(q querier) error) error {
	if s.scope == nil {
		return fn(s.db)
	}
	return s.scope(ctx, fn)
}

// rebind rewrites '?' placeholders as $1..$n for Postgres
func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ts converts a timestamp into the dialect's bind value
func (s *sqlStore) ts(t time.Time) any {
	t = t.UTC()
	if s.dialect == dialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

func (s *sqlStore) tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.ts(*t)
}

func (s *sqlStore) exec(ctx context.Context, what, query string, args ...any) (int64, error) {
	var affected int64
	err := s.run(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, s.translate(err, what)
	}
	return affected, nil
}

// queryRows runs query and hands every row to scan. Rows are fully drained before returning.
func (s *sqlStore) queryRows(ctx context.Context, what, query string, args []any, scan func(rowScanner) error) error {
	err := s.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return s.translate(err, what)
	}
	return nil
}

func (s *sqlStore) queryRow(ctx context.Context, what, query string, args []any, scan func(rowScanner) error) error {
	err := s.run(ctx, func(q querier) error {
		return scan(q.QueryRowContext(ctx, s.rebind(query), args...))
	})
	if err != nil {
		return s.translate(err, what)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// sqlTime scans timestamps from either driver: time.Time from lib/pq, TEXT from SQLite.
type sqlTime struct {
	Time  time.Time
	Valid bool
}

var sqlTimeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	models.DueDateLayout,
}

func (t *sqlTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", value)
	}
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range sqlTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t sqlTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func newID() string {
	return uuid.NewString()
}

// ================= Profiles =================

const profileColumns = "id, name, role, avatar_url, created_at"

func scanProfile(sc rowScanner) (models.Profile, error) {
	var (
		p       models.Profile
		role    string
		avatar  sql.NullString
		created sqlTime
	)
	if err := sc.Scan(&p.ID, &p.Name, &role, &avatar, &created); err != nil {
		return p, err
	}
	p.Role = models.Role(role)
	p.AvatarURL = strPtr(avatar)
	p.CreatedAt = created.Time
	return p, nil
}

func (s *sqlStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, "Profile",
		"INSERT INTO profiles ("+profileColumns+") VALUES (?, ?, ?, ?, ?)",
		p.ID, p.Name, string(p.Role), nullStr(p.AvatarURL), s.ts(p.CreatedAt))
	return err
}

func (s *sqlStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := s.queryRow(ctx, "Profile", "SELECT "+profileColumns+" FROM profiles WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		p, err = scanProfile(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *sqlStore) ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Profile
	query := "SELECT " + profileColumns + " FROM profiles WHERE id IN (" + placeholders(len(ids)) + ")"
	err := s.queryRows(ctx, "Profile", query, stringArgs(ids), func(sc rowScanner) error {
		p, err := scanProfile(sc)
		if err == nil {
			out = append(out, p)
		}
		return err
	})
	return out, err
}

// ================= Projects =================

const projectColumns = "id, name, description, timeline, progress, status, freelancer_id, invite_token, created_at, updated_at"

func scanProject(sc rowScanner) (models.Project, error) {
	var (
		p                models.Project
		description      sql.NullString
		timeline         sql.NullString
		status           string
		progress         int64
		created, updated sqlTime
	)
	err := sc.Scan(&p.ID, &p.Name, &description, &timeline, &progress, &status, &p.FreelancerID, &p.InviteToken, &created, &updated)
	if err != nil {
		return p, err
	}
	p.Description = description.String
	p.Timeline = timeline.String
	p.Progress = int(progress)
	p.Status = models.ProjectStatus(status)
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return p, nil
}

func (s *sqlStore) listProjects(ctx context.Context, query string, args ...any) ([]models.Project, error) {
	var out []models.Project
	err := s.queryRows(ctx, "Project", query, args, func(sc rowScanner) error {
		p, err := scanProject(sc)
		if err == nil {
			out = append(out, p)
		}
		return err
	})
	return out, err
}

func (s *sqlStore) CreateProject(ctx context.Context, p *models.Project) error {
	now := time.Now().UTC()
	p.ID = newID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	_, err := s.exec(ctx, "Project",
		"INSERT INTO projects ("+projectColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Description, p.Timeline, int64(p.Progress), string(p.Status), p.FreelancerID, p.InviteToken, s.ts(now), s.ts(now))
	return err
}

func (s *sqlStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.queryRow(ctx, "Project", "SELECT "+projectColumns+" FROM projects WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		p, err = scanProject(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *sqlStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	n, err := s.exec(ctx, "Project",
		"UPDATE projects SET name = ?, description = ?, timeline = ?, status = ?, updated_at = ? WHERE id = ?",
		p.Name, p.Description, p.Timeline, string(p.Status), s.ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("Project not found")
	}
	return nil
}

func (s *sqlStore) UpdateProjectProgress(ctx context.Context, id string, progress int) error {
	_, err := s.exec(ctx, "Project",
		"UPDATE projects SET progress = ?, updated_at = ? WHERE id = ?",
		int64(progress), s.ts(time.Now()), id)
	return err
}

func (s *sqlStore) ListProjectsByFreelancer(ctx context.Context, freelancerID string) ([]models.Project, error) {
	return s.listProjects(ctx, "SELECT "+projectColumns+" FROM projects WHERE freelancer_id = ? ORDER BY updated_at DESC", freelancerID)
}

func (s *sqlStore) ListProjectsByClient(ctx context.Context, clientID string) ([]models.Project, error) {
	query := "SELECT p." + strings.ReplaceAll(projectColumns, ", ", ", p.") +
		" FROM projects p JOIN project_clients pc ON pc.project_id = p.id WHERE pc.client_id = ? ORDER BY p.updated_at DESC"
	return s.listProjects(ctx, query, clientID)
}

func (s *sqlStore) AddAllowedClients(ctx context.Context, projectID string, emails []string) error {
	if len(emails) == 0 {
		return nil
	}
	now := s.ts(time.Now())
	values := make([]string, 0, len(emails))
	args := make([]any, 0, len(emails)*4)
	for _, email := range emails {
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, newID(), projectID, email, now)
	}
	query := "INSERT INTO allowed_clients (id, project_id, email, created_at) VALUES " +
		strings.Join(values, ", ") + " ON CONFLICT (project_id, email) DO NOTHING"
	_, err := s.exec(ctx, "Allowed client", query, args...)
	return err
}

func (s *sqlStore) ListAllowedClients(ctx context.Context, projectID string) ([]models.AllowedClient, error) {
	var out []models.AllowedClient
	query := "SELECT id, project_id, email, created_at FROM allowed_clients WHERE project_id = ? ORDER BY created_at ASC"
	err := s.queryRows(ctx, "Allowed client", query, []any{projectID}, func(sc rowScanner) error {
		var (
			a       models.AllowedClient
			created sqlTime
		)
		if err := sc.Scan(&a.ID, &a.ProjectID, &a.Email, &created); err != nil {
			return err
		}
		a.CreatedAt = created.Time
		out = append(out, a)
		return nil
	})
	return out, err
}

// inviteLookupQuery resolves a token without row-level visibility; the
// Postgres dialect goes through the SECURITY DEFINER function instead.
const inviteLookupQuery = `SELECT p.id, p.name, COALESCE(p.description, ''), COALESCE(pr.name, ''),
	EXISTS (SELECT 1 FROM allowed_clients ac WHERE ac.project_id = p.id AND lower(ac.email) = lower(?))
	FROM projects p LEFT JOIN profiles pr ON pr.id = p.freelancer_id
	WHERE p.invite_token = ?`

func (s *sqlStore) GetProjectByInviteToken(ctx context.Context, token, viewerEmail string) (*models.InviteSummary, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidInvite
	}

	query := inviteLookupQuery
	args := []any{viewerEmail, token}
	if s.dialect == dialectPostgres {
		query = "SELECT project_id, name, description, freelancer_name, email_allowed FROM get_project_by_invite_token(?, ?)"
		args = []any{token, viewerEmail}
	}

	var found []models.InviteSummary
	err := s.queryRows(ctx, "Project", query, args, func(sc rowScanner) error {
		var sum models.InviteSummary
		if err := sc.Scan(&sum.ProjectID, &sum.Name, &sum.Description, &sum.FreelancerName, &sum.EmailAllowed); err != nil {
			return err
		}
		found = append(found, sum)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperrors.ErrInvalidInvite
	}
	return &found[0], nil
}

func scanProjectClient(sc rowScanner) (models.ProjectClient, error) {
	var (
		pc     models.ProjectClient
		joined sqlTime
	)
	if err := sc.Scan(&pc.ID, &pc.ProjectID, &pc.ClientID, &joined); err != nil {
		return pc, err
	}
	pc.JoinedAt = joined.Time
	return pc, nil
}

func (s *sqlStore) GetProjectClient(ctx context.Context, projectID, clientID string) (*models.ProjectClient, error) {
	var pc models.ProjectClient
	query := "SELECT id, project_id, client_id, joined_at FROM project_clients WHERE project_id = ? AND client_id = ?"
	err := s.queryRow(ctx, "Membership", query, []any{projectID, clientID}, func(sc rowScanner) error {
		var err error
		pc, err = scanProjectClient(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// AddProjectClient applies the membership insert policy: callers may only
// add themselves, and only when their e-mail is on the project's allow-list.
func (s *sqlStore) AddProjectClient(ctx context.Context, projectID, clientID string) (*models.ProjectClient, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return nil, apperrors.Unauthenticated("Authentication required")
	}
	if caller.UserID != clientID {
		return nil, apperrors.Unauthorized("You can only join projects as yourself")
	}

	var allowed bool
	err := s.queryRow(ctx, "Allowed client",
		"SELECT EXISTS (SELECT 1 FROM allowed_clients WHERE project_id = ? AND lower(email) = lower(?))",
		[]any{projectID, caller.Email}, func(sc rowScanner) error { return sc.Scan(&allowed) })
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.Unauthorized("Your email is not authorized to join this project")
	}

	pc := models.ProjectClient{ID: newID(), ProjectID: projectID, ClientID: clientID, JoinedAt: time.Now().UTC()}
	if _, err := s.exec(ctx, "Membership",
		"INSERT INTO project_clients (id, project_id, client_id, joined_at) VALUES (?, ?, ?, ?)",
		pc.ID, pc.ProjectID, pc.ClientID, s.ts(pc.JoinedAt)); err != nil {
		return nil, err
	}
	return &pc, nil
}

func (s *sqlStore) ListProjectClientIDs(ctx context.Context, projectID string, _ models.Role) ([]string, error) {
	var ids []string
	query := "SELECT client_id FROM project_clients WHERE project_id = ? ORDER BY joined_at ASC"
	if s.dialect == dialectPostgres {
		query = "SELECT client_id FROM get_project_clients_for_freelancer(?)"
	}
	err := s.queryRows(ctx, "Membership", query, []any{projectID}, func(sc rowScanner) error {
		var id string
		if err := sc.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// ================= Todos & Categories =================

const todoColumns = "id, project_id, title, description, completed, category_id, priority, created_at, completed_at"

func scanTodo(sc rowScanner) (models.Todo, error) {
	var (
		t                    models.Todo
		description, catID   sql.NullString
		priority             string
		created, completedAt sqlTime
	)
	if err := sc.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &t.Completed, &catID, &priority, &created, &completedAt); err != nil {
		return t, err
	}
	t.Description = strPtr(description)
	t.CategoryID = strPtr(catID)
	t.Priority = models.Priority(priority)
	t.CreatedAt = created.Time
	t.CompletedAt = completedAt.ptr()
	return t, nil
}

func (s *sqlStore) ListTodos(ctx context.Context, projectID string) ([]models.Todo, error) {
	var out []models.Todo
	query := "SELECT " + todoColumns + " FROM todos WHERE project_id = ? ORDER BY created_at DESC"
	err := s.queryRows(ctx, "Todo", query, []any{projectID}, func(sc rowScanner) error {
		t, err := scanTodo(sc)
		if err == nil {
			out = append(out, t)
		}
		return err
	})
	return out, err
}

func (s *sqlStore) GetTodo(ctx context.Context, id string) (*models.Todo, error) {
	var t models.Todo
	err := s.queryRow(ctx, "Todo", "SELECT "+todoColumns+" FROM todos WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		t, err = scanTodo(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqlStore) CreateTodo(ctx context.Context, t *models.Todo) error {
	t.ID = newID()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, "Todo",
		"INSERT INTO todos ("+todoColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.ProjectID, t.Title, nullStr(t.Description), t.Completed, nullStr(t.CategoryID),
		string(t.Priority), s.ts(t.CreatedAt), s.tsPtr(t.CompletedAt))
	return err
}

func (s *sqlStore) UpdateTodo(ctx context.Context, t *models.Todo) error {
	n, err := s.exec(ctx, "Todo",
		"UPDATE todos SET title = ?, description = ?, completed = ?, category_id = ?, priority = ?, completed_at = ? WHERE id = ?",
		t.Title, nullStr(t.Description), t.Completed, nullStr(t.CategoryID), string(t.Priority), s.tsPtr(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("Todo not found")
	}
	return nil
}

func (s *sqlStore) DeleteTodo(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "Todo", "DELETE FROM todos WHERE id = ?", id)
	return err
}

const categoryColumns = "id, project_id, name, color, created_at"

func scanCategory(sc rowScanner) (models.Category, error) {
	var (
		c       models.Category
		created sqlTime
	)
	if err := sc.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Color, &created); err != nil {
		return c, err
	}
	c.CreatedAt = created.Time
	return c, nil
}

func (s *sqlStore) ListCategories(ctx context.Context, projectID string) ([]models.Category, error) {
	var out []models.Category
	query := "SELECT " + categoryColumns + " FROM categories WHERE project_id = ? ORDER BY name ASC"
	err := s.queryRows(ctx, "Category", query, []any{projectID}, func(sc rowScanner) error {
		c, err := scanCategory(sc)
		if err == nil {
			out = append(out, c)
		}
		return err
	})
	return out, err
}

func (s *sqlStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	err := s.queryRow(ctx, "Category", "SELECT "+categoryColumns+" FROM categories WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		c, err = scanCategory(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *sqlStore) CreateCategory(ctx context.Context, c *models.Category) error {
	c.ID = newID()
	c.CreatedAt = time.Now().UTC()
	_, err := s.exec(ctx, "Category",
		"INSERT INTO categories ("+categoryColumns+") VALUES (?, ?, ?, ?, ?)",
		c.ID, c.ProjectID, c.Name, c.Color, s.ts(c.CreatedAt))
	return err
}

func (s *sqlStore) DeleteCategory(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "Category", "DELETE FROM categories WHERE id = ?", id)
	return err
}

// ================= Threads & Replies =================

const threadColumns = "id, project_id, title, content, category, creator_id, is_resolved, url, image_url, created_at, updated_at"

func scanThread(sc rowScanner) (models.Thread, error) {
	var (
		t                    models.Thread
		content, link, image sql.NullString
		category             string
		created, updated     sqlTime
	)
	if err := sc.Scan(&t.ID, &t.ProjectID, &t.Title, &content, &category, &t.CreatorID, &t.IsResolved, &link, &image, &created, &updated); err != nil {
		return t, err
	}
	t.Content = strPtr(content)
	t.Category = models.ThreadCategory(category)
	t.URL = strPtr(link)
	t.ImageURL = strPtr(image)
	t.CreatedAt = created.Time
	t.UpdatedAt = updated.Time
	return t, nil
}

func (s *sqlStore) ListThreads(ctx context.Context, projectID string) ([]models.Thread, error) {
	var out []models.Thread
	query := "SELECT " + threadColumns + " FROM threads WHERE project_id = ? ORDER BY created_at DESC"
	err := s.queryRows(ctx, "Thread", query, []any{projectID}, func(sc rowScanner) error {
		t, err := scanThread(sc)
		if err == nil {
			out = append(out, t)
		}
		return err
	})
	return out, err
}

func (s *sqlStore) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var t models.Thread
	err := s.queryRow(ctx, "Thread", "SELECT "+threadColumns+" FROM threads WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		t, err = scanThread(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqlStore) CreateThread(ctx context.Context, t *models.Thread) error {
	now := time.Now().UTC()
	t.ID = newID()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.exec(ctx, "Thread",
		"INSERT INTO threads ("+threadColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.ProjectID, t.Title, nullStr(t.Content), string(t.Category), t.CreatorID, t.IsResolved,
		nullStr(t.URL), nullStr(t.ImageURL), s.ts(now), s.ts(now))
	return err
}

func (s *sqlStore) SetThreadResolved(ctx context.Context, id string, resolved bool, at time.Time) error {
	n, err := s.exec(ctx, "Thread", "UPDATE threads SET is_resolved = ?, updated_at = ? WHERE id = ?", resolved, s.ts(at), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("Thread not found")
	}
	return nil
}

func (s *sqlStore) DeleteThread(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "Thread", "DELETE FROM threads WHERE id = ?", id)
	return err
}

// GetReplyStats aggregates in Go so both dialects return comparable timestamps
func (s *sqlStore) GetReplyStats(ctx context.Context, threadIDs []string) (map[string]models.ReplyStats, error) {
	stats := make(map[string]models.ReplyStats, len(threadIDs))
	if len(threadIDs) == 0 {
		return stats, nil
	}
	query := "SELECT thread_id, created_at FROM thread_replies WHERE thread_id IN (" + placeholders(len(threadIDs)) + ")"
	err := s.queryRows(ctx, "Reply", query, stringArgs(threadIDs), func(sc rowScanner) error {
		var (
			threadID string
			created  sqlTime
		)
		if err := sc.Scan(&threadID, &created); err != nil {
			return err
		}
		st := stats[threadID]
		st.Count++
		if created.Time.After(st.LastReplyAt) {
			st.LastReplyAt = created.Time
		}
		stats[threadID] = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

const replyColumns = "id, thread_id, author_id, content, is_edited, image_url, created_at, updated_at"

func scanReply(sc rowScanner) (models.ThreadReply, error) {
	var (
		r                models.ThreadReply
		image            sql.NullString
		created, updated sqlTime
	)
	if err := sc.Scan(&r.ID, &r.ThreadID, &r.AuthorID, &r.Content, &r.IsEdited, &image, &created, &updated); err != nil {
		return r, err
	}
	r.ImageURL = strPtr(image)
	r.CreatedAt = created.Time
	r.UpdatedAt = updated.Time
	return r, nil
}

func (s *sqlStore) ListReplies(ctx context.Context, threadID string) ([]models.ThreadReply, error) {
	var out []models.ThreadReply
	query := "SELECT " + replyColumns + " FROM thread_replies WHERE thread_id = ? ORDER BY created_at ASC"
	err := s.queryRows(ctx, "Reply", query, []any{threadID}, func(sc rowScanner) error {
		r, err := scanReply(sc)
		if err == nil {
			out = append(out, r)
		}
		return err
	})
	return out, err
}

func (s *sqlStore) GetReply(ctx context.Context, id string) (*models.ThreadReply, error) {
	var r models.ThreadReply
	err := s.queryRow(ctx, "Reply", "SELECT "+replyColumns+" FROM thread_replies WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		r, err = scanReply(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqlStore) CreateReply(ctx context.Context, r *models.ThreadReply) error {
	now := time.Now().UTC()
	r.ID = newID()
	r.CreatedAt, r.UpdatedAt = now, now
	_, err := s.exec(ctx, "Reply",
		"INSERT INTO thread_replies ("+replyColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.ThreadID, r.AuthorID, r.Content, r.IsEdited, nullStr(r.ImageURL), s.ts(now), s.ts(now))
	return err
}

func (s *sqlStore) UpdateReplyContent(ctx context.Context, id, content string, at time.Time) error {
	n, err := s.exec(ctx, "Reply",
		"UPDATE thread_replies SET content = ?, is_edited = ?, updated_at = ? WHERE id = ?",
		content, true, s.ts(at), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("Reply not found")
	}
	return nil
}

// ================= Documents =================

const documentColumns = "id, project_id, title, type, link, amount, status, due_date, created_at"

func scanDocument(sc rowScanner) (models.Document, error) {
	var (
		d            models.Document
		docType      string
		status       string
		amount       sql.NullFloat64
		due, created sqlTime
	)
	if err := sc.Scan(&d.ID, &d.ProjectID, &d.Title, &docType, &d.Link, &amount, &status, &due, &created); err != nil {
		return d, err
	}
	d.Type = models.DocumentType(docType)
	d.Status = models.DocumentStatus(status)
	if amount.Valid {
		v := amount.Float64
		d.Amount = &v
	}
	d.DueDate = due.ptr()
	d.CreatedAt = created.Time
	return d, nil
}

func dueDateArg(due *time.Time) any {
	if due == nil {
		return nil
	}
	return due.UTC().Format(models.DueDateLayout)
}

func (s *sqlStore) ListDocuments(ctx context.Context, projectID string) ([]models.Document, error) {
	var out []models.Document
	query := "SELECT " + documentColumns + " FROM documents WHERE project_id = ? ORDER BY created_at DESC"
	err := s.queryRows(ctx, "Document", query, []any{projectID}, func(sc rowScanner) error {
		d, err := scanDocument(sc)
		if err == nil {
			out = append(out, d)
		}
		return err
	})
	return out, err
}

func (s *sqlStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := s.queryRow(ctx, "Document", "SELECT "+documentColumns+" FROM documents WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		d, err = scanDocument(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *sqlStore) CreateDocument(ctx context.Context, d *models.Document) error {
	d.ID = newID()
	d.CreatedAt = time.Now().UTC()
	_, err := s.exec(ctx, "Document",
		"INSERT INTO documents ("+documentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		d.ID, d.ProjectID, d.Title, string(d.Type), d.Link, nullFloat(d.Amount), string(d.Status),
		dueDateArg(d.DueDate), s.ts(d.CreatedAt))
	return err
}

func (s *sqlStore) UpdateDocument(ctx context.Context, d *models.Document) error {
	n, err := s.exec(ctx, "Document",
		"UPDATE documents SET title = ?, type = ?, link = ?, amount = ?, status = ?, due_date = ? WHERE id = ?",
		d.Title, string(d.Type), d.Link, nullFloat(d.Amount), string(d.Status), dueDateArg(d.DueDate), d.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("Document not found")
	}
	return nil
}

func (s *sqlStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "Document", "DELETE FROM documents WHERE id = ?", id)
	return err
}

// ================= Notifications =================

const notificationColumns = "id, user_id, project_id, type, title, message, related_id, is_read, created_at"

func scanNotification(sc rowScanner) (models.Notification, error) {
	var (
		n         models.Notification
		kind      string
		relatedID sql.NullString
		created   sqlTime
	)
	if err := sc.Scan(&n.ID, &n.UserID, &n.ProjectID, &kind, &n.Title, &n.Message, &relatedID, &n.IsRead, &created); err != nil {
		return n, err
	}
	n.Type = models.NotificationType(kind)
	n.RelatedID = relatedID.String
	n.CreatedAt = created.Time
	return n, nil
}

// InsertNotifications writes the whole batch in one statement
func (s *sqlStore) InsertNotifications(ctx context.Context, batch []models.Notification) ([]models.Notification, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	out := make([]models.Notification, len(batch))
	values := make([]string, len(batch))
	args := make([]any, 0, len(batch)*9)
	for i, n := range batch {
		n.ID = newID()
		n.IsRead = false
		n.CreatedAt = now
		out[i] = n
		values[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, n.ID, n.UserID, n.ProjectID, string(n.Type), n.Title, n.Message, n.RelatedID, false, s.ts(now))
	}
	query := "INSERT INTO notifications (" + notificationColumns + ") VALUES " + strings.Join(values, ", ")
	if _, err := s.exec(ctx, "Notification", query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sqlStore) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	query := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?"
	err := s.queryRows(ctx, "Notification", query, []any{userID, int64(limit)}, func(sc rowScanner) error {
		n, err := scanNotification(sc)
		if err == nil {
			out = append(out, n)
		}
		return err
	})
	return out, err
}

func (s *sqlStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int64
	err := s.queryRow(ctx, "Notification",
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?",
		[]any{userID, false}, func(sc rowScanner) error { return sc.Scan(&count) })
	return int(count), err
}

func (s *sqlStore) MarkNotificationRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.exec(ctx, "Notification", "UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?", true, id, userID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperrors.NotFound("Notification not found")
	}

	var out models.Notification
	err = s.queryRow(ctx, "Notification", "SELECT "+notificationColumns+" FROM notifications WHERE id = ?", []any{id}, func(sc rowScanner) error {
		var err error
		out, err = scanNotification(sc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *sqlStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	n, err := s.exec(ctx, "Notification", "UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?", true, userID, false)
	return int(n), err
}

// ================= Health =================

func (s *sqlStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.Network(err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// commonSQLError handles failures both dialects report the same way; nil means unhandled
func commonSQLError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(err, apperrors.KindNotFound, what+" not found")
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return apperrors.Network(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Network(err)
	}
	return nil
}
