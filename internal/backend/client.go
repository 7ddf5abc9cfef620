// Package backend is the HTTP client for the remote backend-as-a-service.
// Every call returns (value, error); callers decide whether a failure is
// surfaced to the user or logged and ignored. The client never inspects
// structured error codes, only the human-readable message the server
// returns.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironflow/internal/models"
)

// Client sends requests to the remote backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a backend client. apiKey is sent as X-API-Key on every
// request.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do performs a JSON round trip. in may be nil (no body); out may be nil
// (response body ignored).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Profile is the remote user profile.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	Tier        string `json:"tier"`
}

// Post is one entry in the community feed.
type Post struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	MediaURL  string    `json:"media_url,omitempty"`
	Likes     int       `json:"likes"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is one comment under a feed post.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TrainingSummary is the rolling aggregate the backend recomputes after a
// session completes.
type TrainingSummary struct {
	Sessions      int     `json:"sessions"`
	TotalSets     int     `json:"total_sets"`
	TotalReps     int     `json:"total_reps"`
	TotalVolumeKg float64 `json:"total_volume_kg"`
	PeriodDays    int     `json:"period_days"`
}

// FetchProfile retrieves a user profile.
func (c *Client) FetchProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles/"+url.PathEscape(userID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile writes profile changes.
func (c *Client) UpdateProfile(ctx context.Context, p Profile) error {
	return c.do(ctx, http.MethodPut, "/api/v1/profiles/"+url.PathEscape(p.ID), p, nil)
}

// Follow subscribes the current user to another user's activity.
func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/follows/"+url.PathEscape(userID), nil, nil)
}

// Unfollow removes a follow edge.
func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/follows/"+url.PathEscape(userID), nil, nil)
}

// Feed returns the most recent posts, newest first.
func (c *Client) Feed(ctx context.Context, limit int) ([]Post, error) {
	var posts []Post
	path := "/api/v1/feed?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost publishes a post and returns the stored version.
func (c *Client) CreatePost(ctx context.Context, p Post) (*Post, error) {
	var created Post
	if err := c.do(ctx, http.MethodPost, "/api/v1/posts", p, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeletePost removes the user's own post.
func (c *Client) DeletePost(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/posts/"+id.String(), nil, nil)
}

// LikePost marks a post liked by the current user.
func (c *Client) LikePost(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/posts/"+id.String()+"/likes", nil, nil)
}

// UnlikePost removes the current user's like.
func (c *Client) UnlikePost(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/posts/"+id.String()+"/likes", nil, nil)
}

// AddComment posts a comment under a feed post.
func (c *Client) AddComment(ctx context.Context, postID uuid.UUID, body string) (*Comment, error) {
	var created Comment
	in := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, "/api/v1/posts/"+postID.String()+"/comments", in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpsertSetStats submits one completed set's statistics. The response lists
// the personal-record kinds the set achieved, possibly none.
func (c *Client) UpsertSetStats(ctx context.Context, update models.SetStatsUpdate) ([]models.PRKind, error) {
	var resp struct {
		PRsAchieved []models.PRKind `json:"prs_achieved"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/stats/sets", update, &resp); err != nil {
		return nil, err
	}
	return resp.PRsAchieved, nil
}

// SaveHistory writes the aggregate history record for a finished session.
func (c *Client) SaveHistory(ctx context.Context, rec models.HistoryRecord) error {
	return c.do(ctx, http.MethodPost, "/api/v1/history", rec, nil)
}

// RecentHistory returns the newest history records, newest first.
func (c *Client) RecentHistory(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	var recs []models.HistoryRecord
	path := "/api/v1/history?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// TrainingSummary fetches the current rolling summary without recomputing.
func (c *Client) TrainingSummary(ctx context.Context) (*TrainingSummary, error) {
	var sum TrainingSummary
	if err := c.do(ctx, http.MethodGet, "/api/v1/summary", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// RecomputeTrainingSummary asks the backend to refresh the rolling summary
// and returns the updated values.
func (c *Client) RecomputeTrainingSummary(ctx context.Context) (*TrainingSummary, error) {
	var sum TrainingSummary
	if err := c.do(ctx, http.MethodPost, "/api/v1/summary/recompute", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// CreateSession registers a just-started session remotely.
func (c *Client) CreateSession(ctx context.Context, id uuid.UUID, templateID string, startedAt time.Time) error {
	in := map[string]any{
		"id":          id,
		"template_id": templateID,
		"started_at":  startedAt,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/sessions", in, nil)
}

// CompleteSession marks the remote session record complete.
func (c *Client) CompleteSession(ctx context.Context, id uuid.UUID, durationSec int) error {
	in := map[string]any{"duration_sec": durationSec}
	return c.do(ctx, http.MethodPost, "/api/v1/sessions/"+id.String()+"/complete", in, nil)
}

// SaveTemplate stores a new workout template.
func (c *Client) SaveTemplate(ctx context.Context, tpl models.WorkoutTemplate) error {
	return c.do(ctx, http.MethodPost, "/api/v1/templates", tpl, nil)
}

// UpdateTemplate overwrites an existing template.
func (c *Client) UpdateTemplate(ctx context.Context, tpl models.WorkoutTemplate) error {
	return c.do(ctx, http.MethodPut, "/api/v1/templates/"+url.PathEscape(tpl.ID), tpl, nil)
}

// UploadMedia streams an image or video to the backend and returns the
// public URL it is served from.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copying media: %w", err)
	}
	if err := mw.WriteField("content_type", contentType); err != nil {
		return "", fmt.Errorf("writing content type field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/media", &buf)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("media upload failed (status %d): %s", resp.StatusCode, msg)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	return out.URL, nil
}
