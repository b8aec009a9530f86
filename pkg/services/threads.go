package services

import (
	"context"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"
)

// decorateThreads fills the derived creator name, reply count and last activity
func (s *Service) decorateThreads(ctx context.Context, actor *models.User, threads []models.Thread) error {
	if len(threads) == 0 {
		return nil
	}
	ids := make([]string, len(threads))
	creators := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
		creators[i] = t.CreatorID
	}
	stats, err := s.db.GetReplyStats(ctx, ids)
	if err != nil {
		return err
	}
	names := s.profileNames(ctx, creators)

	for i := range threads {
		t := &threads[i]
		st := stats[t.ID]
		t.CreatorName = models.DisplayName(names, t.CreatorID, actor)
		t.ReplyCount = st.Count
		t.LastActivity = t.UpdatedAt
		if st.LastReplyAt.After(t.LastActivity) {
			t.LastActivity = st.LastReplyAt
		}
	}
	return nil
}

// ListThreads returns the project's threads newest first
func (s *Service) ListThreads(ctx context.Context, actor *models.User, projectID string) ([]models.Thread, error) {
	if _, err := s.requireMember(ctx, actor, projectID); err != nil {
		return nil, err
	}
	threads, err := s.db.ListThreads(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	if err := s.decorateThreads(ctx, actor, threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func (s *Service) GetThread(ctx context.Context, actor *models.User, id string) (*models.Thread, error) {
	thread, err := s.db.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, actor, thread.ProjectID); err != nil {
		return nil, err
	}
	list := []models.Thread{*thread}
	if err := s.decorateThreads(ctx, actor, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// CreateThread is open to both roles. The image, if any, is uploaded
// before the thread row exists; members are notified afterwards.
func (s *Service) CreateThread(ctx context.Context, actor *models.User, projectID string, req models.CreateThreadRequest, image *Attachment) (*models.Thread, error) {
	if _, err := s.requireMember(ctx, actor, projectID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	category := req.Category
	if category == "" {
		category = models.ThreadGeneral
	}

	thread := &models.Thread{
		ProjectID: projectID,
		Title:     title,
		Content:   req.Content,
		Category:  category,
		CreatorID: actor.ID,
		URL:       req.URL,
		ImageURL:  req.ImageURL,
	}
	if image != nil {
		url, err := s.UploadImage(ctx, actor, projectID, image)
		if err != nil {
			return nil, err
		}
		thread.ImageURL = &url
	}
	if err := s.db.CreateThread(ctx, thread); err != nil {
		return nil, err
	}

	thread.CreatorName = models.DisplayName(nil, actor.ID, actor)
	thread.LastActivity = thread.UpdatedAt
	s.Notify(ctx, actor, ThreadCreated(thread))
	return thread, nil
}

// ToggleThreadResolved flips the resolved flag; freelancer only
func (s *Service) ToggleThreadResolved(ctx context.Context, actor *models.User, id string) (*models.Thread, error) {
	thread, err := s.db.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, actor, thread.ProjectID); err != nil {
		return nil, err
	}
	if err := s.db.SetThreadResolved(ctx, id, !thread.IsResolved, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.GetThread(ctx, actor, id)
}

func (s *Service) DeleteThread(ctx context.Context, actor *models.User, id string) error {
	thread, err := s.db.GetThread(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.requireOwner(ctx, actor, thread.ProjectID); err != nil {
		return err
	}
	return s.db.DeleteThread(ctx, id)
}

// ================= Replies =================

// ListReplies returns a thread's replies oldest first
func (s *Service) ListReplies(ctx context.Context, actor *models.User, threadID string) ([]models.ThreadReply, error) {
	thread, err := s.db.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, actor, thread.ProjectID); err != nil {
		return nil, err
	}
	replies, err := s.db.ListReplies(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if replies == nil {
		return []models.ThreadReply{}, nil
	}

	authors := make([]string, len(replies))
	for i, r := range replies {
		authors[i] = r.AuthorID
	}
	names := s.profileNames(ctx, authors)
	for i := range replies {
		replies[i].AuthorName = models.DisplayName(names, replies[i].AuthorID, actor)
	}
	return replies, nil
}

func (s *Service) CreateReply(ctx context.Context, actor *models.User, threadID string, req models.CreateReplyRequest, image *Attachment) (*models.ThreadReply, error) {
	thread, err := s.db.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, actor, thread.ProjectID); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}

	reply := &models.ThreadReply{
		ThreadID: threadID,
		AuthorID: actor.ID,
		Content:  content,
		ImageURL: req.ImageURL,
	}
	if image != nil {
		url, err := s.UploadImage(ctx, actor, thread.ProjectID, image)
		if err != nil {
			return nil, err
		}
		reply.ImageURL = &url
	}
	if err := s.db.CreateReply(ctx, reply); err != nil {
		return nil, err
	}

	reply.AuthorName = models.DisplayName(nil, actor.ID, actor)
	s.Notify(ctx, actor, ReplyCreated(thread, reply.AuthorName))
	return reply, nil
}

// UpdateReply edits the content of the actor's own reply
func (s *Service) UpdateReply(ctx context.Context, actor *models.User, id string, content string) (*models.ThreadReply, error) {
	reply, err := s.db.GetReply(ctx, id)
	if err != nil {
		return nil, err
	}
	if reply.AuthorID != actor.ID {
		return nil, apperrors.Forbidden("Only the author can edit this reply")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}
	if err := s.db.UpdateReplyContent(ctx, id, content, s.now().UTC()); err != nil {
		return nil, err
	}
	updated, err := s.db.GetReply(ctx, id)
	if err != nil {
		return nil, err
	}
	updated.AuthorName = models.DisplayName(nil, actor.ID, actor)
	return updated, nil
}
