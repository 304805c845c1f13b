// Package discord implements the Notifier port on the Discord REST API.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Notifier = (*Notifier)(nil)

const (
	// DefaultTimeout bounds every notification call.
	DefaultTimeout = 10 * time.Second

	defaultBaseURL = "https://discord.com/api/v10"
	cdnBaseURL     = "https://cdn.discordapp.com"
	maxErrorBody   = 4 << 10

	// MaxMessages is the largest page RecentMessages will request.
	MaxMessages = 50
)

// Notifier posts announcements to, and reads messages from, one channel.
type Notifier struct {
	http      *http.Client
	baseURL   string
	token     string
	channelID string
}

// NewNotifier creates a Notifier authenticated as a bot.
func NewNotifier(botToken, channelID string) *Notifier {
	httpClient := &http.Client{Transport: httpcache.NewMemoryCacheTransport(), Timeout: DefaultTimeout}
	return NewNotifierWithHTTPClient(httpClient, defaultBaseURL, botToken, channelID)
}

// NewNotifierWithHTTPClient creates a Notifier with a custom http.Client and
// API base URL. Intended for tests.
func NewNotifierWithHTTPClient(httpClient *http.Client, baseURL, botToken, channelID string) *Notifier {
	return &Notifier{
		http:      httpClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     botToken,
		channelID: channelID,
	}
}

type createMessageRequest struct {
	Content string `json:"content"`
}

type messageJSON struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	} `json:"author"`
}

// Announce formats and posts the announcement, returning the message ID.
func (n *Notifier) Announce(ctx context.Context, a model.Announcement) (string, error) {
	var created messageJSON
	path := "/channels/" + n.channelID + "/messages"
	if err := n.do(ctx, http.MethodPost, path, createMessageRequest{Content: FormatAnnouncement(a)}, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// RecentMessages returns up to limit newest messages, capped at MaxMessages.
func (n *Notifier) RecentMessages(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > MaxMessages {
		limit = MaxMessages
	}

	var raw []messageJSON
	path := "/channels/" + n.channelID + "/messages?limit=" + strconv.Itoa(limit)
	if err := n.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	messages := make([]model.ChatMessage, 0, len(raw))
	for _, m := range raw {
		msg := model.ChatMessage{
			ID:      m.ID,
			Author:  m.Author.Username,
			Content: m.Content,
		}
		if msg.Author == "" {
			msg.Author = "unknown"
		}
		if m.Author.Avatar != "" {
			msg.Avatar = fmt.Sprintf("%s/avatars/%s/%s.png", cdnBaseURL, m.Author.ID, m.Author.Avatar)
		}
		if ts, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
			msg.Timestamp = ts.UTC()
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// FormatAnnouncement renders the chat message body for an announcement.
func FormatAnnouncement(a model.Announcement) string {
	title := a.Title
	if title == "" {
		title = "📢 Server announcement"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", title)
	if a.Reason != "" {
		fmt.Fprintf(&b, "🛠️ Reason: %s\n", a.Reason)
	}
	if a.Message != "" {
		fmt.Fprintf(&b, "%s\n", a.Message)
	}
	if a.RemindKick {
		b.WriteString("⚠️ Please log off soon to avoid losing progress.\n")
	}
	operator := a.Operator
	if operator == "" {
		operator = "unknown"
	}
	fmt.Fprintf(&b, "\n— Ops Center (%s)", operator)
	return b.String()
}

func (n *Notifier) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal discord request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+n.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return model.TimeoutError("discord request timed out", err)
		}
		return model.UpstreamError("discord request failed", 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return model.UpstreamError(describeStatus(resp.StatusCode), resp.StatusCode, string(data), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.UpstreamError("discord returned a malformed response", resp.StatusCode, "", err)
	}
	return nil
}

// describeStatus turns the common Discord failures into operator-facing hints.
func describeStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "discord bot token is invalid (401)"
	case http.StatusForbidden:
		return "bot lacks permission for the channel (403)"
	case http.StatusNotFound:
		return "channel not found or not visible to the bot (404)"
	case http.StatusTooManyRequests:
		return "discord rate limit hit (429), try again later"
	default:
		return fmt.Sprintf("discord request failed (%d)", status)
	}
}
