package models

import (
	"math"
	"time"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on-hold"
)

// Project is owned by one freelancer and shared with invited clients
type Project struct {
	ID           string        `json:"id" db:"id"`
	Name         string        `json:"name" db:"name"`
	Description  string        `json:"description" db:"description"`
	Timeline     string        `json:"timeline" db:"timeline"`
	Progress     int           `json:"progress" db:"progress"`
	Status       ProjectStatus `json:"status" db:"status"`
	FreelancerID string        `json:"freelancer_id" db:"freelancer_id"`
	InviteToken  string        `json:"invite_token,omitempty" db:"invite_token"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// ProjectDetail is a project plus the people around it
type ProjectDetail struct {
	Project
	Clients        []User   `json:"clients"`
	AllowedClients []string `json:"allowed_clients,omitempty"`
}

// AllowedClient pre-authorises an e-mail to redeem a project's invite
type AllowedClient struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProjectClient is a redeemed membership; unique per (project, client)
type ProjectClient struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	ClientID  string    `json:"client_id" db:"client_id"`
	JoinedAt  time.Time `json:"joined_at" db:"joined_at"`
}

// InviteSummary is what an invite token resolves to
type InviteSummary struct {
	ProjectID      string `json:"project_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	FreelancerName string `json:"freelancer_name"`
	EmailAllowed   bool   `json:"email_allowed"`
}

// CreateProjectRequest represents the request payload for project creation
type CreateProjectRequest struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	Timeline     string   `json:"timeline" validate:"max=200"`
	ClientEmails []string `json:"client_emails" validate:"dive,required,email"`
}

// UpdateProjectRequest represents the request payload for project edits
type UpdateProjectRequest struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	Timeline    *string        `json:"timeline,omitempty" validate:"omitempty,max=200"`
	Status      *ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=active completed on-hold"`
}

// AddAllowedClientsRequest represents the request payload for extending the allow-list
type AddAllowedClientsRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,required,email"`
}

// ComputeProgress returns round(100*completed/total), or 0 for an empty todo list.
func ComputeProgress(total, completed int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
