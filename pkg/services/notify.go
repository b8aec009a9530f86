package services

import (
	"context"
	"fmt"

	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
	"clientbridge/pkg/realtime"
)

// Event describes something worth telling the other project members about
type Event struct {
	ProjectID string
	Type      models.NotificationType
	Title     string
	Message   string
	RelatedID string
}

// ThreadCreated builds the event for a new thread
func ThreadCreated(t *models.Thread) Event {
	return Event{
		ProjectID: t.ProjectID,
		Type:      models.NotificationThread,
		Title:     "New Thread",
		Message:   "New thread: " + t.Title,
		RelatedID: t.ID,
	}
}

// DocumentCreated builds the event for a new document
func DocumentCreated(d *models.Document) Event {
	return Event{
		ProjectID: d.ProjectID,
		Type:      models.NotificationDocument,
		Title:     "New Document",
		Message:   "New document added: " + d.Title,
		RelatedID: d.ID,
	}
}

// ReplyCreated builds the event for a reply; RelatedID points at the thread
func ReplyCreated(thread *models.Thread, authorName string) Event {
	return Event{
		ProjectID: thread.ProjectID,
		Type:      models.NotificationReply,
		Title:     "New Reply",
		Message:   fmt.Sprintf("%s replied to %q", authorName, thread.Title),
		RelatedID: thread.ID,
	}
}

// Recipients returns the project members other than the actor, each once.
func Recipients(freelancerID string, clientIDs []string, actorID string) []string {
	members := append([]string{freelancerID}, clientIDs...)
	out := make([]string, 0, len(members))
	for _, id := range uniqueStrings(members) {
		if id != actorID {
			out = append(out, id)
		}
	}
	return out
}

// Notify fans an event out to every other member of the project. It never
// fails: errors are logged and the number of rows written is returned.
// The actor's role decides how the client list is read.
func (s *Service) Notify(ctx context.Context, actor *models.User, ev Event) int {
	log := logger.FromContext(ctx).With("project_id", ev.ProjectID, "type", ev.Type)

	project, err := s.db.GetProject(ctx, ev.ProjectID)
	if err != nil {
		log.Warn("notification fan-out skipped: project lookup failed", "error", err)
		return 0
	}
	clientIDs, err := s.db.ListProjectClientIDs(ctx, ev.ProjectID, actor.Role)
	if err != nil {
		log.Warn("notification fan-out: client lookup failed, notifying freelancer only", "error", err)
		clientIDs = nil
	}

	recipients := Recipients(project.FreelancerID, clientIDs, actor.ID)
	if len(recipients) == 0 {
		return 0
	}

	batch := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		batch = append(batch, models.Notification{
			UserID:    userID,
			ProjectID: ev.ProjectID,
			Type:      ev.Type,
			Title:     ev.Title,
			Message:   ev.Message,
			RelatedID: ev.RelatedID,
		})
	}

	inserted, err := s.db.InsertNotifications(ctx, batch)
	if err != nil {
		log.Warn("notification fan-out failed", "recipients", len(batch), "error", err)
		return 0
	}

	for _, n := range inserted {
		s.publish(ctx, realtime.Inserted(n))
	}
	return len(inserted)
}
