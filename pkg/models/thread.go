package models

import "time"

type ThreadCategory string

const (
	ThreadGeneral  ThreadCategory = "general"
	ThreadBug      ThreadCategory = "bug"
	ThreadFeature  ThreadCategory = "feature"
	ThreadFeedback ThreadCategory = "feedback"
)

// Thread is a project discussion. CreatorName, ReplyCount and LastActivity are derived on read.
type Thread struct {
	ID           string         `json:"id" db:"id"`
	ProjectID    string         `json:"project_id" db:"project_id"`
	Title        string         `json:"title" db:"title"`
	Content      *string        `json:"content,omitempty" db:"content"`
	Category     ThreadCategory `json:"category" db:"category"`
	CreatorID    string         `json:"creator_id" db:"creator_id"`
	IsResolved   bool           `json:"is_resolved" db:"is_resolved"`
	URL          *string        `json:"url,omitempty" db:"url"`
	ImageURL     *string        `json:"image_url,omitempty" db:"image_url"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	CreatorName  string         `json:"creator_name"`
	ReplyCount   int            `json:"reply_count"`
	LastActivity time.Time      `json:"last_activity"`
}

// ThreadReply belongs to a thread. AuthorName is derived on read.
type ThreadReply struct {
	ID         string    `json:"id" db:"id"`
	ThreadID   string    `json:"thread_id" db:"thread_id"`
	AuthorID   string    `json:"author_id" db:"author_id"`
	Content    string    `json:"content" db:"content"`
	IsEdited   bool      `json:"is_edited" db:"is_edited"`
	ImageURL   *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	AuthorName string    `json:"author_name"`
}

// ReplyStats aggregates the replies of one thread
type ReplyStats struct {
	Count       int
	LastReplyAt time.Time
}

// MemberPlaceholderName is shown when a member's profile is not visible to the viewer.
const MemberPlaceholderName = "Project Member"

// DisplayName picks the best available name for authorID: the profile name
// when visible, the viewer's own name for their rows, else a placeholder.
func DisplayName(names map[string]string, authorID string, viewer *User) string {
	if name := names[authorID]; name != "" {
		return name
	}
	if viewer != nil && viewer.ID == authorID && viewer.Name != "" {
		return viewer.Name
	}
	return MemberPlaceholderName
}

// CreateThreadRequest represents the request payload for thread creation
type CreateThreadRequest struct {
	Title    string         `json:"title" validate:"required,max=300"`
	Content  *string        `json:"content,omitempty" validate:"omitempty,max=20000"`
	Category ThreadCategory `json:"category" validate:"omitempty,oneof=general bug feature feedback"`
	URL      *string        `json:"url,omitempty" validate:"omitempty,url"`
	ImageURL *string        `json:"image_url,omitempty" validate:"omitempty,url"`
}

// CreateReplyRequest represents the request payload for replies
type CreateReplyRequest struct {
	Content  string  `json:"content" validate:"required,max=20000"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// UpdateReplyRequest represents the request payload for reply edits
type UpdateReplyRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}
