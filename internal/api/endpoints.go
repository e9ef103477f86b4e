package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jobmarket/marketplace-client/pkg/model"
)

// call sends opts to endpoint and decodes the JSON body into T.
func call[T any](ctx context.Context, c *Client, endpoint string, opts RequestOptions) (T, error) {
	var out T
	resp, err := c.Send(ctx, endpoint, opts)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// callJSON is call with v encoded as the request body.
func callJSON[T any](ctx context.Context, c *Client, method, endpoint string, v any) (T, error) {
	opts, err := withJSON(method, v)
	if err != nil {
		var zero T
		return zero, err
	}
	return call[T](ctx, c, endpoint, opts)
}

// CurrentUser fetches the signed-in user from /auth/me/.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	return call[*model.User](ctx, c, "/auth/me/", RequestOptions{})
}

// UpdateCurrentUser PATCHes /auth/me/; nil fields in patch are left unchanged.
func (c *Client) UpdateCurrentUser(ctx context.Context, patch model.UserPatch) (*model.User, error) {
	return callJSON[*model.User](ctx, c, http.MethodPatch, "/auth/me/", patch)
}

// CreateFreelancerProfile creates the caller's freelancer profile.
func (c *Client) CreateFreelancerProfile(ctx context.Context, p model.FreelancerProfile) (*model.FreelancerProfile, error) {
	return callJSON[*model.FreelancerProfile](ctx, c, http.MethodPost, "/freelancers/profiles/", p)
}

// FreelancerProfile fetches a freelancer profile by id.
func (c *Client) FreelancerProfile(ctx context.Context, id int64) (*model.FreelancerProfile, error) {
	return call[*model.FreelancerProfile](ctx, c, fmt.Sprintf("/freelancers/profiles/%d/", id), RequestOptions{})
}

// UpdateFreelancerProfile PATCHes the profile; patch may be a partial map or a full profile.
func (c *Client) UpdateFreelancerProfile(ctx context.Context, id int64, patch any) (*model.FreelancerProfile, error) {
	return callJSON[*model.FreelancerProfile](ctx, c, http.MethodPatch, fmt.Sprintf("/freelancers/profiles/%d/", id), patch)
}

// CreateRecruiterProfile creates the caller's recruiter profile.
func (c *Client) CreateRecruiterProfile(ctx context.Context, p model.RecruiterProfile) (*model.RecruiterProfile, error) {
	return callJSON[*model.RecruiterProfile](ctx, c, http.MethodPost, "/recruiters/profiles/", p)
}

// Jobs lists jobs filtered by params. Both paginated and bare-list bodies are accepted.
func (c *Client) Jobs(ctx context.Context, params url.Values) (*model.JobPage, error) {
	resp, err := c.Send(ctx, "/jobs/", RequestOptions{Query: params})
	if err != nil {
		return nil, err
	}
	page := &model.JobPage{}
	if isJSONArray(resp.Body) {
		if err := resp.Decode(&page.Results); err != nil {
			return nil, err
		}
		page.Count = len(page.Results)
		return page, nil
	}
	if err := resp.Decode(page); err != nil {
		return nil, err
	}
	return page, nil
}

// CreateJob posts a new job listing.
func (c *Client) CreateJob(ctx context.Context, j model.Job) (*model.Job, error) {
	return callJSON[*model.Job](ctx, c, http.MethodPost, "/jobs/", j)
}

// ApplyToJob submits an application for jobID.
func (c *Client) ApplyToJob(ctx context.Context, jobID int64, a model.Application) (*model.Application, error) {
	return callJSON[*model.Application](ctx, c, http.MethodPost, fmt.Sprintf("/jobs/%d/apply/", jobID), a)
}

// Notifications returns the caller's notifications, unwrapping a paginated body if present.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	resp, err := c.Send(ctx, "/notifications/", RequestOptions{})
	if err != nil {
		return nil, err
	}
	var out []model.Notification
	if isJSONArray(resp.Body) {
		err = resp.Decode(&out)
		return out, err
	}
	var page struct {
		Results []model.Notification `json:"results"`
	}
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	_, err := c.Send(ctx, fmt.Sprintf("/notifications/%d/mark_read/", id), RequestOptions{Method: http.MethodPost})
	return err
}

// AnalyticsDashboard returns the caller's dashboard counters keyed by metric name.
func (c *Client) AnalyticsDashboard(ctx context.Context) (model.Dashboard, error) {
	return call[model.Dashboard](ctx, c, "/analytics/dashboard/", RequestOptions{})
}

// TrackEvent records an analytics event; nil metadata is sent as {}.
func (c *Client) TrackEvent(ctx context.Context, eventType string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	opts, err := Post(model.TrackEventRequest{EventType: eventType, Metadata: metadata})
	if err != nil {
		return err
	}
	_, err = c.Send(ctx, "/analytics/track_event/", opts)
	return err
}

func isJSONArray(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}
