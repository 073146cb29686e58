package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/models"
)

// ErrRoomNotFound is returned by GetRoom for an unknown room name.
var ErrRoomNotFound = errors.New("room not found")

// Client talks to the provider's room management API. The service holds no
// authoritative room state of its own; every read goes back to the
// provider.
type Client struct {
	baseURL string
	issuer  *TokenIssuer
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		issuer:  NewTokenIssuer(apiKey, apiSecret),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Get(),
	}
}

// Issuer exposes the token issuer for minting participant tokens.
func (c *Client) Issuer() *TokenIssuer { return c.issuer }

// ParticipantInfo is the provider's view of a connected participant.
type ParticipantInfo struct {
	SID      string         `json:"sid"`
	Identity string         `json:"identity"`
	Name     string         `json:"name,omitempty"`
	State    string         `json:"state,omitempty"`
	JoinedAt int64          `json:"joined_at,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// rawRoom is the provider wire shape; metadata arrives as a JSON string.
type rawRoom struct {
	Name            string `json:"name"`
	SID             string `json:"sid"`
	MaxParticipants int    `json:"max_participants"`
	NumParticipants int    `json:"num_participants"`
	CreationTime    int64  `json:"creation_time"`
	Metadata        string `json:"metadata"`
}

func (r rawRoom) info() models.RoomInfo {
	info := models.RoomInfo{
		Name:            r.Name,
		SID:             r.SID,
		MaxParticipants: r.MaxParticipants,
		NumParticipants: r.NumParticipants,
		CreationTime:    r.CreationTime,
	}
	if r.Metadata != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(r.Metadata), &m); err == nil {
			info.Metadata = m
		}
	}
	return info
}

func (c *Client) CreateRoom(ctx context.Context, name string, maxParticipants, emptyTimeout int, metadata map[string]any) (*models.RoomInfo, error) {
	req := map[string]any{
		"name":             name,
		"max_participants": maxParticipants,
		"empty_timeout":    emptyTimeout,
	}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, errors.Wrap(err, "marshal room metadata")
		}
		req["metadata"] = string(b)
	}

	var room rawRoom
	if err := c.call(ctx, "CreateRoom", req, &room); err != nil {
		return nil, errors.Wrapf(err, "create room %s", name)
	}
	c.logger.Info("Created room", "room", name, "sid", room.SID)
	info := room.info()
	return &info, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]models.RoomInfo, error) {
	return c.listRooms(ctx, nil)
}

// GetRoom looks up one room by name; ErrRoomNotFound if the provider does
// not know it.
func (c *Client) GetRoom(ctx context.Context, name string) (*models.RoomInfo, error) {
	rooms, err := c.listRooms(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, ErrRoomNotFound
	}
	return &rooms[0], nil
}

func (c *Client) listRooms(ctx context.Context, names []string) ([]models.RoomInfo, error) {
	req := map[string]any{}
	if len(names) > 0 {
		req["names"] = names
	}
	var resp struct {
		Rooms []rawRoom `json:"rooms"`
	}
	if err := c.call(ctx, "ListRooms", req, &resp); err != nil {
		return nil, errors.Wrap(err, "list rooms")
	}
	rooms := make([]models.RoomInfo, 0, len(resp.Rooms))
	for _, r := range resp.Rooms {
		rooms = append(rooms, r.info())
	}
	return rooms, nil
}

func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	if err := c.call(ctx, "DeleteRoom", map[string]any{"room": name}, nil); err != nil {
		return errors.Wrapf(err, "delete room %s", name)
	}
	c.logger.Info("Deleted room", "room", name)
	return nil
}

func (c *Client) ListParticipants(ctx context.Context, room string) ([]ParticipantInfo, error) {
	var resp struct {
		Participants []ParticipantInfo `json:"participants"`
	}
	if err := c.call(ctx, "ListParticipants", map[string]any{"room": room}, &resp); err != nil {
		return nil, errors.Wrapf(err, "list participants in %s", room)
	}
	return resp.Participants, nil
}

// MintAccessToken issues a join token for (room, identity).
func (c *Client) MintAccessToken(room, identity string, metadata map[string]any) (string, time.Time, error) {
	return c.issuer.Mint(room, identity, metadata)
}

// ValidateToken reports whether a token carries our signature and has not
// expired.
func (c *Client) ValidateToken(token string) bool {
	return c.issuer.Validate(token)
}

// call performs one management RPC: JSON over POST, authorized by an admin
// token.
func (c *Client) call(ctx context.Context, method string, req any, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	admin, err := c.issuer.MintAdmin()
	if err != nil {
		return errors.Wrap(err, "mint admin token")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/rooms/"+method, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+admin)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "call %s", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("%s returned %d: %s", method, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", method)
	}
	return nil
}
