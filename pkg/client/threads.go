package client

import (
	"context"
	"net/http"

	"clientbridge/pkg/models"
)

func (c *Client) ListThreads(ctx context.Context, projectID string) ([]models.Thread, error) {
	var out []models.Thread
	return out, c.do(ctx, http.MethodGet, "/api/projects/"+pathEscape(projectID)+"/threads", nil, &out)
}

func (c *Client) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var out models.Thread
	if err := c.do(ctx, http.MethodGet, "/api/threads/"+pathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateThread posts a thread; with an image it switches to a multipart upload
func (c *Client) CreateThread(ctx context.Context, projectID string, req models.CreateThreadRequest, image *Image) (*models.Thread, error) {
	path := "/api/projects/" + pathEscape(projectID) + "/threads"
	var out models.Thread
	if image == nil {
		if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	fields := map[string]string{
		"title":    req.Title,
		"category": string(req.Category),
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.URL != nil {
		fields["url"] = *req.URL
	}
	if err := c.doMultipart(ctx, path, fields, image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleThreadResolved(ctx context.Context, id string) (*models.Thread, error) {
	var out models.Thread
	if err := c.do(ctx, http.MethodPost, "/api/threads/"+pathEscape(id)+"/resolve", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteThread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/threads/"+pathEscape(id), nil, nil)
}

func (c *Client) ListReplies(ctx context.Context, threadID string) ([]models.ThreadReply, error) {
	var out []models.ThreadReply
	return out, c.do(ctx, http.MethodGet, "/api/threads/"+pathEscape(threadID)+"/replies", nil, &out)
}

func (c *Client) CreateReply(ctx context.Context, threadID, content string, image *Image) (*models.ThreadReply, error) {
	path := "/api/threads/" + pathEscape(threadID) + "/replies"
	var out models.ThreadReply
	var err error
	if image == nil {
		err = c.do(ctx, http.MethodPost, path, models.CreateReplyRequest{Content: content}, &out)
	} else {
		err = c.doMultipart(ctx, path, map[string]string{"content": content}, image, &out)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateReply(ctx context.Context, id, content string) (*models.ThreadReply, error) {
	var out models.ThreadReply
	if err := c.do(ctx, http.MethodPut, "/api/replies/"+pathEscape(id), models.UpdateReplyRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
