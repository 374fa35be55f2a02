package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sketchroom/internal/core/domain"
)

// APIClient talks to the room HTTP API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

type CreateRoomRequest struct {
	Name       string          `json:"name,omitempty"`
	Type       domain.RoomType `json:"type,omitempty"`
	Private    bool            `json:"private,omitempty"`
	SecretWord string          `json:"secret_word,omitempty"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
}

type CreateRoomResponse struct {
	Room        domain.RoomInfo `json:"room"`
	OwnerToken  string          `json:"owner_token"`
	InviteToken string          `json:"invite_token,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *APIClient) CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResponse, error) {
	var resp CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) ListRooms(ctx context.Context) ([]domain.RoomInfo, error) {
	var resp struct {
		Rooms []domain.RoomInfo `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// CreateInvite needs the room owner token.
func (c *APIClient) CreateInvite(ctx context.Context, roomID domain.RoomID) (string, error) {
	var resp struct {
		InviteToken string `json:"invite_token"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/rooms/%s/invites", roomID), nil, &resp); err != nil {
		return "", err
	}
	return resp.InviteToken, nil
}

// BoardPNG downloads the server-side rendering of the room.
func (c *APIClient) BoardPNG(ctx context.Context, roomID domain.RoomID) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/v1/rooms/%s/board.png", roomID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func parseError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}
