package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"

	"github.com/google/uuid"
)

// SupabaseDatabase 通过 PostgREST 访问平台数据表。
// Requests carry the caller's access token so row-level security applies.
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(baseURL, anonKey string) *SupabaseDatabase {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// postgrestError is the error body PostgREST returns
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// makeRequest 发送HTTP请求到 /rest/v1
func (db *SupabaseDatabase) makeRequest(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, db.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	bearer := db.apiKey
	if caller, ok := CallerFrom(ctx); ok && caller.AccessToken != "" {
		bearer = caller.AccessToken
	}
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Network(err)
	}

	if resp.StatusCode >= 400 {
		return nil, translatePostgrestError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// translatePostgrestError maps a failed response onto the error taxonomy
func translatePostgrestError(status int, body []byte) error {
	var pgErr postgrestError
	_ = json.Unmarshal(body, &pgErr)
	cause := fmt.Errorf("API request failed with status %d: %s", status, string(body))

	switch {
	case pgErr.Code == "42501" || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Wrap(cause, apperrors.KindUnauthorized, "You are not allowed to perform this action")
	case pgErr.Code == "PGRST116" || status == http.StatusNotFound:
		return apperrors.Wrap(cause, apperrors.KindNotFound, "Record not found")
	case pgErr.Code == "23505" || status == http.StatusConflict:
		return apperrors.Backend(cause, "Record already exists").WithCode(apperrors.CodeDuplicate)
	case pgErr.Message != "":
		return apperrors.Backend(cause, pgErr.Message)
	default:
		return apperrors.Backend(cause, "Backend request failed")
	}
}

func (db *SupabaseDatabase) selectInto(ctx context.Context, endpoint string, out interface{}) error {
	data, err := db.makeRequest(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Backend(err, "Unexpected response from backend")
	}
	return nil
}

func (db *SupabaseDatabase) writeInto(ctx context.Context, method, endpoint string, payload, out interface{}, headers map[string]string) error {
	data, err := db.makeRequest(ctx, method, endpoint, payload, headers)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Backend(err, "Unexpected response from backend")
	}
	return nil
}

// first returns the first row or a NotFound error
func first[T any](rows []T, what string) (*T, error) {
	if len(rows) == 0 {
		return nil, apperrors.NotFound(what + " not found")
	}
	return &rows[0], nil
}

func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

func inList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return url.QueryEscape("in.(" + strings.Join(quoted, ",") + ")")
}

// ================= Profiles =================

func (db *SupabaseDatabase) CreateProfile(ctx context.Context, p *models.Profile) error {
	payload := map[string]interface{}{
		"id":   p.ID,
		"name": p.Name,
		"role": p.Role,
	}
	if p.AvatarURL != nil {
		payload["avatar_url"] = *p.AvatarURL
	}
	var rows []models.Profile
	if err := db.writeInto(ctx, http.MethodPost, "/profiles", payload, &rows, nil); err != nil {
		return err
	}
	if len(rows) > 0 {
		*p = rows[0]
	}
	return nil
}

func (db *SupabaseDatabase) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var rows []models.Profile
	if err := db.selectInto(ctx, "/profiles?id="+eq(id)+"&select=*", &rows); err != nil {
		return nil, err
	}
	return first(rows, "Profile")
}

func (db *SupabaseDatabase) ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Profile
	if err := db.selectInto(ctx, "/profiles?id="+inList(ids)+"&select=*", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ================= Projects =================

func (db *SupabaseDatabase) CreateProject(ctx context.Context, p *models.Project) error {
	payload := map[string]interface{}{
		"name":          p.Name,
		"description":   p.Description,
		"timeline":      p.Timeline,
		"progress":      p.Progress,
		"status":        p.Status,
		"freelancer_id": p.FreelancerID,
		"invite_token":  p.InviteToken,
	}
	var rows []models.Project
	if err := db.writeInto(ctx, http.MethodPost, "/projects", payload, &rows, nil); err != nil {
		return err
	}
	created, err := first(rows, "Project")
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

func (db *SupabaseDatabase) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var rows []models.Project
	if err := db.selectInto(ctx, "/projects?id="+eq(id)+"&select=*", &rows); err != nil {
		return nil, err
	}
	return first(rows, "Project")
}

func (db *SupabaseDatabase) UpdateProject(ctx context.Context, p *models.Project) error {
	payload := map[string]interface{}{
		"name":        p.Name,
		"description": p.Description,
		"timeline":    p.Timeline,
		"status":      p.Status,
		"updated_at":  time.Now().UTC(),
	}
	var rows []models.Project
	if err := db.writeInto(ctx, http.MethodPatch, "/projects?id="+eq(p.ID), payload, &rows, nil); err != nil {
		return err
	}
	updated, err := first(rows, "Project")
	if err != nil {
		return err
	}
	*p = *updated
	return nil
}

func (db *SupabaseDatabase) UpdateProjectProgress(ctx context.Context, id string, progress int) error {
	payload := map[string]interface{}{
		"progress":   progress,
		"updated_at": time.Now().UTC(),
	}
	return db.writeInto(ctx, http.MethodPatch, "/projects?id="+eq(id), payload, nil, map[string]string{"Prefer": "return=minimal"})
}

func (db *SupabaseDatabase) ListProjectsByFreelancer(ctx context.Context, freelancerID string) ([]models.Project, error) {
	var rows []models.Project
	err := db.selectInto(ctx, "/projects?freelancer_id="+eq(freelancerID)+"&select=*&order=updated_at.desc", &rows)
	return rows, err
}

func (db *SupabaseDatabase) ListProjectsByClient(ctx context.Context, clientID string) ([]models.Project, error) {
	var memberships []struct {
		ProjectID string `json:"project_id"`
	}
	if err := db.selectInto(ctx, "/project_clients?client_id="+eq(clientID)+"&select=project_id", &memberships); err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.ProjectID
	}
	var rows []models.Project
	err := db.selectInto(ctx, "/projects?id="+inList(ids)+"&select=*&order=updated_at.desc", &rows)
	return rows, err
}

func (db *SupabaseDatabase) AddAllowedClients(ctx context.Context, projectID string, emails []string) error {
	if len(emails) == 0 {
		return nil
	}
	payload := make([]map[string]interface{}, len(emails))
	for i, email := range emails {
		payload[i] = map[string]interface{}{"project_id": projectID, "email": email}
	}
	headers := map[string]string{"Prefer": "resolution=ignore-duplicates,return=minimal"}
	return db.writeInto(ctx, http.MethodPost, "/allowed_clients?on_conflict=project_id,email", payload, nil, headers)
}

func (db *SupabaseDatabase) ListAllowedClients(ctx context.Context, projectID string) ([]models.AllowedClient, error) {
	var rows []models.AllowedClient
	err := db.selectInto(ctx, "/allowed_clients?project_id="+eq(projectID)+"&select=*&order=created_at.asc", &rows)
	return rows, err
}

// GetProjectByInviteToken 调用 get_project_by_invite_token RPC（绕过行级可见性）
func (db *SupabaseDatabase) GetProjectByInviteToken(ctx context.Context, token, viewerEmail string) (*models.InviteSummary, error) {
	payload := map[string]interface{}{
		"p_invite_token": token,
		"p_email":        viewerEmail,
	}
	var rows []models.InviteSummary
	if err := db.writeInto(ctx, http.MethodPost, "/rpc/get_project_by_invite_token", payload, &rows, nil); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrInvalidInvite
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) GetProjectClient(ctx context.Context, projectID, clientID string) (*models.ProjectClient, error) {
	var rows []models.ProjectClient
	endpoint := "/project_clients?project_id=" + eq(projectID) + "&client_id=" + eq(clientID) + "&select=*"
	if err := db.selectInto(ctx, endpoint, &rows); err != nil {
		return nil, err
	}
	return first(rows, "Membership")
}

// AddProjectClient inserts a membership; the platform policy rejects e-mails that are not allow-listed.
func (db *SupabaseDatabase) AddProjectClient(ctx context.Context, projectID, clientID string) (*models.ProjectClient, error) {
	payload := map[string]interface{}{
		"project_id": projectID,
		"client_id":  clientID,
	}
	var rows []models.ProjectClient
	if err := db.writeInto(ctx, http.MethodPost, "/project_clients", payload, &rows, nil); err != nil {
		return nil, err
	}
	return first(rows, "Membership")
}

// ListProjectClientIDs reads joined client ids. Freelancers go through an RPC
// because the membership table is only visible to the clients themselves.
func (db *SupabaseDatabase) ListProjectClientIDs(ctx context.Context, projectID string, asRole models.Role) ([]string, error) {
	var rows []struct {
		ClientID string `json:"client_id"`
	}
	if asRole == models.RoleFreelancer {
		payload := map[string]interface{}{"p_project_id": projectID}
		if err := db.writeInto(ctx, http.MethodPost, "/rpc/get_project_clients_for_freelancer", payload, &rows, nil); err != nil {
			return nil, err
		}
	} else if err := db.selectInto(ctx, "/project_clients?project_id="+eq(projectID)+"&select=client_id", &rows); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ClientID)
	}
	return ids, nil
}

// ================= Todos & Categories =================

func (db *SupabaseDatabase) ListTodos(ctx context.Context, projectID string) ([]models.Todo, error) {
	var rows []models.Todo
	err := db.selectInto(ctx, "/todos?project_id="+eq(projectID)+"&select=*&order=created_at.desc", &rows)
	return rows, err
}

func (db *SupabaseDatabase) GetTodo(ctx context.Context, id string) (*models.Todo, error) {
	var rows []models.Todo
	if err := db.selectInto(ctx, "/todos?id="+eq(id)+"&select=*", &rows); err != nil {
		return nil, err
	}
	return first(rows, "Todo")
}

func todoPayload(t *models.Todo) map[string]interface{} {
	return map[string]interface{}{
		"title":        t.Title,
		"description":  t.Description,
		"completed":    t.Completed,
		"category_id":  t.CategoryID,
		"priority":     t.Priority,
		"completed_at": t.CompletedAt,
	}
}

func (db *SupabaseDatabase) CreateTodo(ctx context.Context, t *models.Todo) error {
	payload := todoPayload(t)
	payload["project_id"] = t.ProjectID
	var rows []models.Todo
	if err := db.writeInto(ctx, http.MethodPost, "/todos", payload, &rows, nil); err != nil {
		return err
	}
	created, err := first(rows, "Todo")
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

func (db *SupabaseDatabase) UpdateTodo(ctx context.Context, t *models.Todo) error {
	var rows []models.Todo
	if err := db.writeInto(ctx, http.MethodPatch, "/todos?id="+eq(t.ID), todoPayload(t), &rows, nil); err != nil {
		return err
	}
	updated, err := first(rows, "Todo")
	if err != nil {
		return err
	}
	*t = *updated
	return nil
}

func (db *SupabaseDatabase) DeleteTodo(ctx context.Context, id string) error {
	return db.writeInto(ctx, http.MethodDelete, "/todos?id="+eq(id), nil, nil, nil)
}

func (db *SupabaseDatabase) ListCategories(ctx context.Context, projectID string) ([]models.Category, error) {
	var rows []models.Category
	err := db.selectInto(ctx, "/categories?project_id="+eq(projectID)+"&select=*&order=name.asc", &rows)
	return rows, err
}

func (db *SupabaseDatabase) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var rows []models.Category
	if err := db.selectInto(ctx, "/categories?id="+eq(id)+"&select=*", &rows); err != nil {
		return nil, err
	}
	return first(rows, "Category")
}

func (db *SupabaseDatabase) CreateCategory(ctx context.Context, c *models.Category) error {
	payload := map[string]interface{}{
		"project_id": c.ProjectID,
		"name":       c.Name,
		"color":      c.Color,
	}
	var rows []models.Category
	if err := db.writeInto(ctx, http.MethodPost, "/categories", payload, &rows, nil); err != nil {
		return err
	}
	created, err := first(rows, "Category")
	if err != nil {
		return err
	}
	*c = *created
	return nil
}

func (db *SupabaseDatabase) DeleteCategory(ctx context.Context, id string) error {
	return db.writeInto(ctx, http.MethodDelete, "/categories?id="+eq(id), nil, nil, nil)
}

// ================= Threads & Replies =================

func (db *SupabaseDatabase) ListThreads(ctx context.Context, projectID string) ([]models.Thread, error) {
	var rows []models.Thread
	err := db.selectInto(ctx, "/threads?project_id="+eq(projectID)+"&select=*&order=created_at.desc", &rows)
	return rows, err
}

func (db *SupabaseDatabase) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var rows []models.Thread
	if err := db.selectInto(ctx, "/threads?id="+eq(id)+"&select=*", &rows); err != nil {
		return nil, err
	}
	return first(rows, "Thread")
}

func (db *SupabaseDatabase) CreateThread(ctx context.Context, t *models.Thread) error {
	payload := map[string]interface{}{
		"project_id":  t.ProjectID,
		"title":       t.Title,
		"content":     t.Content,
		"category":    t.Category,
		"creator_id":  t.CreatorID,
		"is_resolved": t.IsResolved,
		"url":         t.URL,
		"image_url":   t.ImageURL,
	}
	var rows []models.Thread
	if err := db.writeInto(ctx, http.MethodPost, "/threads", payload, &rows, nil); err != nil {
		return err
	}
	created, err := first(rows, "Thread")
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

func (db *SupabaseDatabase) SetThreadResolved(ctx context.Context, id string, resolved bool, at time.Time) error {
	payload := map[string]interface{}{
		"is_resolved": resolved,
		"updated_at":  at.UTC(),
	}
	var rows []models.Thread
	if err := db.writeInto(ctx, http.MethodPatch, "/threads?id="+eq(id), payload, &rows, nil); err != nil {
		return err
	}
	_, err := first(rows, "Thread")
	return err
}

func (db *SupabaseDatabase) DeleteThread(ctx context.Context, id string) error {
	return db.writeInto(ctx, http.MethodDelete, "/threads?id="+eq(id), nil, nil, nil)
}

// GetReplyStats groups replies by thread id client-side
func (db *SupabaseDatabase) GetReplyStats(ctx context.Context, threadIDs []string) (map[string]models.ReplyStats, error) {
	stats := make(map[string]models.ReplyStats, len(threadIDs))
	if len(threadIDs) == 0 {
		return stats, nil
	}
	var rows []struct {
		ThreadID  string    `json:"thread_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := db.selectInto(ctx, "/thread_replies?thread_id="+inList(threadIDs)+"&select=thread_id,created_at", &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		s := stats[r.ThreadID]
		s.Count++
		if r.CreatedAt.After(s.LastReplyAt) {
			s.LastReplyAt = r.CreatedAt
		}
		stats[r.ThreadID] = s
	}
	return stats, nil
}

func (db *SupabaseDatabase) ListReplies(ctx context.Context, threadID string) ([]models.ThreadReply, error) {
	var rows []models.ThreadReply
	err := db.selectInto(ctx, "/thread_replies?thread_id="+eq(threadID)+"&select=*&order=created_at.asc", &rows)
	return rows, err
}

func (db *SupabaseDatabase) GetReply(ctx context.Context, id string) (*models.ThreadReply, error) {
	var rows []models.ThreadReply
	if err := db.selectInto(ctx, "/thread_replies?id="+eq(id)+"&select=*", &rows); err != nil {
		return nil, err
	}
	return first(rows, "Reply")
}

func (db *SupabaseDatabase) CreateReply(ctx context.Context, r *models.ThreadReply) error {
	payload := map[string]interface{}{
		"thread_id": r.ThreadID,
		"author_id": r.AuthorID,
		"content":   r.Content,
		"image_url": r.ImageURL,
	}
	var rows []models.ThreadReply
	if err := db.writeInto(ctx, http.MethodPost, "/thread_replies", payload, &rows, nil); err != nil {
		return err
	}
	created, err := first(rows, "Reply")
	if err != nil {
		return err
	}
	*r = *created
	return nil
}

func (db *SupabaseDatabase) UpdateReplyContent(ctx context.Context, id, content string, at time.Time) error {
	payload := map[string]interface{}{
		"content":    content,
		"is_edited":  true,
		"updated_at": at.UTC(),
	}
	var rows []models.ThreadReply
	if err := db.writeInto(ctx, http.MethodPatch, "/thread_replies?id="+eq(id), payload, &rows, nil); err != nil {
		return err
	}
	_, err := first(rows, "Reply")
	return err
}

// ================= Documents =================

// documentRow carries due_date as the DATE string PostgREST returns
type documentRow struct {
	ID        string                `json:"id"`
	ProjectID string                `json:"project_id"`
	Title     string                `json:"title"`
	Type      models.DocumentType   `json:"type"`
	Link      string                `json:"link"`
	Amount    *float64              `json:"amount"`
	Status    models.DocumentStatus `json:"status"`
	DueDate   *string               `json:"due_date"`
	CreatedAt time.Time             `json:"created_at"`
}

func (r documentRow) toModel() models.Document {
	d := models.Document{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Title:     r.Title,
		Type:      r.Type,
		Link:      r.Link,
		Amount:    r.Amount,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
	if r.DueDate != nil && len(*r.DueDate) >= len(models.DueDateLayout) {
		if due, err := models.ParseDueDate((*r.DueDate)[:len(models.DueDateLayout)]); err == nil {
			d.DueDate = due
		}
	}
	return d
}

func documentPayload(d *models.Document) map[string]interface{} {
	var due interface{}
	if d.DueDate != nil {
		due = d.DueDate.Format(models.DueDateLayout)
	}
	return map[string]interface{}{
		"title":    d.Title,
		"type":     d.Type,
		"link":     d.Link,
		"amount":   d.Amount,
		"status":   d.Status,
		"due_date": due,
	}
}

func (db *SupabaseDatabase) ListDocuments(ctx context.Context, projectID string) ([]models.Document, error) {
	var rows []documentRow
	if err := db.selectInto(ctx, "/documents?project_id="+eq(projectID)+"&select=*&order=created_at.desc", &rows); err != nil {
		return nil, err
	}
	docs := make([]models.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.toModel()
	}
	return docs, nil
}

func (db *SupabaseDatabase) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var rows []documentRow
	if err := db.selectInto(ctx, "/documents?id="+eq(id)+"&select=*", &rows); err != nil {
		return nil, err
	}
	row, err := first(rows, "Document")
	if err != nil {
		return nil, err
	}
	d := row.toModel()
	return &d, nil
}

func (db *SupabaseDatabase) CreateDocument(ctx context.Context, d *models.Document) error {
	payload := documentPayload(d)
	payload["project_id"] = d.ProjectID
	var rows []documentRow
	if err := db.writeInto(ctx, http.MethodPost, "/documents", payload, &rows, nil); err != nil {
		return err
	}
	row, err := first(rows, "Document")
	if err != nil {
		return err
	}
	*d = row.toModel()
	return nil
}

func (db *SupabaseDatabase) UpdateDocument(ctx context.Context, d *models.Document) error {
	var rows []documentRow
	if err := db.writeInto(ctx, http.MethodPatch, "/documents?id="+eq(d.ID), documentPayload(d), &rows, nil); err != nil {
		return err
	}
	row, err := first(rows, "Document")
	if err != nil {
		return err
	}
	*d = row.toModel()
	return nil
}

func (db *SupabaseDatabase) DeleteDocument(ctx context.Context, id string) error {
	return db.writeInto(ctx, http.MethodDelete, "/documents?id="+eq(id), nil, nil, nil)
}

// ================= Notifications =================

// InsertNotifications 一次批量插入。
// 接收方只能读取自己的通知，插入时不回读行（return=minimal），id 与时间由本地生成
func (db *SupabaseDatabase) InsertNotifications(ctx context.Context, batch []models.Notification) ([]models.Notification, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	rows := make([]models.Notification, len(batch))
	payload := make([]map[string]interface{}, len(batch))
	for i, n := range batch {
		n.ID = uuid.NewString()
		n.IsRead = false
		n.CreatedAt = now
		rows[i] = n
		payload[i] = map[string]interface{}{
			"id":         n.ID,
			"user_id":    n.UserID,
			"project_id": n.ProjectID,
			"type":       n.Type,
			"title":      n.Title,
			"message":    n.Message,
			"related_id": n.RelatedID,
			"is_read":    false,
			"created_at": n.CreatedAt,
		}
	}
	if err := db.writeInto(ctx, http.MethodPost, "/notifications", payload, nil, map[string]string{"Prefer": "return=minimal"}); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *SupabaseDatabase) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	endpoint := fmt.Sprintf("/notifications?user_id=%s&select=*&order=created_at.desc&limit=%d", eq(userID), limit)
	err := db.selectInto(ctx, endpoint, &rows)
	return rows, err
}

func (db *SupabaseDatabase) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	if err := db.selectInto(ctx, "/notifications?user_id="+eq(userID)+"&is_read=eq.false&select=id", &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (db *SupabaseDatabase) MarkNotificationRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	var rows []models.Notification
	endpoint := "/notifications?id=" + eq(id) + "&user_id=" + eq(userID)
	if err := db.writeInto(ctx, http.MethodPatch, endpoint, map[string]interface{}{"is_read": true}, &rows, nil); err != nil {
		return nil, err
	}
	return first(rows, "Notification")
}

func (db *SupabaseDatabase) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	endpoint := "/notifications?user_id=" + eq(userID) + "&is_read=eq.false"
	if err := db.writeInto(ctx, http.MethodPatch, endpoint+"&select=id", map[string]interface{}{"is_read": true}, &rows, nil); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ================= Health =================

// HealthCheck 检查 PostgREST 是否可达
func (db *SupabaseDatabase) HealthCheck(ctx context.Context) error {
	_, err := db.makeRequest(ctx, http.MethodGet, "/projects?select=id&limit=1", nil, nil)
	return err
}

// Close 无需关闭 HTTP 客户端
func (db *SupabaseDatabase) Close() error {
	return nil
}
