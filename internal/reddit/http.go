package reddit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"

	"crossban/internal/config"
	"crossban/internal/models"
)

const (
	tokenURL  = "https://www.reddit.com/api/v1/access_token"
	oauthBase = "https://oauth.reddit.com"

	requestTimeout = 15 * time.Second
)

// HTTPClient talks to the Reddit API using the script-app password grant.
type HTTPClient struct {
	cfg    config.RedditConfig
	client *fasthttp.Client

	parsers fastjson.ParserPool

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a Reddit API client from credentials
func NewHTTPClient(cfg config.RedditConfig) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:  requestTimeout,
			WriteTimeout: requestTimeout,
		},
	}
}

// ensureToken fetches an OAuth token if the cached one is missing or stale
func (c *HTTPClient) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("grant_type", "password")
	args.Set("username", c.cfg.Username)
	args.Set("password", c.cfg.Password)

	req.SetRequestURI(tokenURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.SetUserAgent(c.cfg.UserAgent)
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.SetBodyString(args.String())

	if err := c.client.DoTimeout(req, resp, requestTimeout); err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", statusError(resp.StatusCode(), "token request")
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(resp.Body())
	if err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}

	c.token = string(v.GetStringBytes("access_token"))
	if c.token == "" {
		return "", fmt.Errorf("token response: empty access_token")
	}
	expiresIn := v.GetInt("expires_in")
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	// Refresh a minute early to avoid using a token at its expiry edge
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)

	return c.token, nil
}

// do performs an authenticated API call and returns the raw response body
func (c *HTTPClient) do(ctx context.Context, method, path string, form *fasthttp.Args) ([]byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(oauthBase + path)
	req.Header.SetMethod(method)
	req.Header.SetUserAgent(c.cfg.UserAgent)
	req.Header.Set("Authorization", "bearer "+token)
	if form != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBodyString(form.String())
	}

	if err := c.client.DoTimeout(req, resp, requestTimeout); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, statusError(resp.StatusCode(), fmt.Sprintf("%s %s", method, path))
	}

	// Copy out: resp body is invalid after release
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

// ListModerationActions returns the sub's moderation log, newest first
func (c *HTTPClient) ListModerationActions(ctx context.Context, sub string, limit int) ([]ModAction, error) {
	path := fmt.Sprintf("/r/%s/about/log?limit=%d", sub, limit)
	body, err := c.do(ctx, fasthttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("mod log response: %w", err)
	}

	var actions []ModAction
	for _, child := range v.GetArray("data", "children") {
		data := child.Get("data")
		if data == nil {
			continue
		}
		createdUTC := data.GetFloat64("created_utc")
		actions = append(actions, ModAction{
			ID:          string(data.GetStringBytes("id")),
			Action:      string(data.GetStringBytes("action")),
			Sub:         models.NormalizeSub(string(data.GetStringBytes("subreddit"))),
			Moderator:   string(data.GetStringBytes("mod")),
			TargetUser:  string(data.GetStringBytes("target_author")),
			Description: string(data.GetStringBytes("description")),
			Detail:      string(data.GetStringBytes("details")),
			CreatedAt:   time.Unix(int64(createdUTC), 0).UTC(),
		})
	}
	return actions, nil
}

// ListBannedUsers returns the sub's live ban list
func (c *HTTPClient) ListBannedUsers(ctx context.Context, sub string) ([]BannedUser, error) {
	path := fmt.Sprintf("/r/%s/about/banned?limit=100", sub)
	var banned []BannedUser
	after := ""

	for {
		uri := path
		if after != "" {
			uri += "&after=" + after
		}
		body, err := c.do(ctx, fasthttp.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}

		p := c.parsers.Get()
		v, err := p.ParseBytes(body)
		if err != nil {
			c.parsers.Put(p)
			return nil, fmt.Errorf("ban list response: %w", err)
		}
		for _, child := range v.GetArray("data", "children") {
			banned = append(banned, BannedUser{
				Username: models.NormalizeUsername(string(child.GetStringBytes("name"))),
				Note:     string(child.GetStringBytes("note")),
			})
		}
		after = string(v.GetStringBytes("data", "after"))
		c.parsers.Put(p)

		if after == "" {
			return banned, nil
		}
	}
}

// Ban bans a user in a sub with the system's reason tag
func (c *HTTPClient) Ban(ctx context.Context, sub, username, reasonTag, note string) error {
	form := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(form)
	form.Set("api_type", "json")
	form.Set("type", "banned")
	form.Set("name", username)
	form.Set("ban_reason", reasonTag)
	form.Set("note", note)

	body, err := c.do(ctx, fasthttp.MethodPost, fmt.Sprintf("/r/%s/api/friend", sub), form)
	if err != nil {
		return err
	}
	return c.checkAPIErrors(body, username)
}

// Unban lifts a ban on a user in a sub
func (c *HTTPClient) Unban(ctx context.Context, sub, username string) error {
	form := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(form)
	form.Set("type", "banned")
	form.Set("name", username)

	_, err := c.do(ctx, fasthttp.MethodPost, fmt.Sprintf("/r/%s/api/unfriend", sub), form)
	return err
}

// ListModerators returns the usernames of a sub's moderators
func (c *HTTPClient) ListModerators(ctx context.Context, sub string) ([]string, error) {
	body, err := c.do(ctx, fasthttp.MethodGet, fmt.Sprintf("/r/%s/about/moderators", sub), nil)
	if err != nil {
		return nil, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("moderators response: %w", err)
	}

	var mods []string
	for _, child := range v.GetArray("data", "children") {
		if name := string(child.GetStringBytes("name")); name != "" {
			mods = append(mods, models.NormalizeUsername(name))
		}
	}
	return mods, nil
}

// IsUserKnown reports whether the account still exists
func (c *HTTPClient) IsUserKnown(ctx context.Context, username string) (bool, error) {
	_, err := c.do(ctx, fasthttp.MethodGet, fmt.Sprintf("/user/%s/about", username), nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListModmailCommands returns the latest message of each open modmail
// conversation addressed to the sub
func (c *HTTPClient) ListModmailCommands(ctx context.Context, sub string) ([]ModmailCommand, error) {
	path := fmt.Sprintf("/api/mod/conversations?entity=%s&state=mod&limit=50", sub)
	body, err := c.do(ctx, fasthttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("modmail response: %w", err)
	}

	conversations := v.GetObject("conversations")
	if conversations == nil {
		return nil, nil
	}

	var commands []ModmailCommand
	conversations.Visit(func(key []byte, conv *fastjson.Value) {
		convID := string(key)

		// The last objId with key "messages" is the latest message
		lastMsgID := ""
		for _, obj := range conv.GetArray("objIds") {
			if string(obj.GetStringBytes("key")) == "messages" {
				lastMsgID = string(obj.GetStringBytes("id"))
			}
		}
		if lastMsgID == "" {
			return
		}

		msg := v.Get("messages", lastMsgID)
		if msg == nil {
			return
		}

		commands = append(commands, ModmailCommand{
			ConversationID: convID,
			Sub:            models.NormalizeSub(string(conv.GetStringBytes("owner", "displayName"))),
			Sender:         models.NormalizeUsername(string(msg.GetStringBytes("author", "name"))),
			Body:           strings.TrimSpace(string(msg.GetStringBytes("bodyMarkdown"))),
		})
	})
	return commands, nil
}

// ReplyModmail posts a reply into a modmail conversation
func (c *HTTPClient) ReplyModmail(ctx context.Context, conversationID, body string) error {
	form := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(form)
	form.Set("body", body)
	form.Set("isInternal", "false")

	_, err := c.do(ctx, fasthttp.MethodPost, fmt.Sprintf("/api/mod/conversations/%s/messages", conversationID), form)
	return err
}

// checkAPIErrors inspects an api_type=json response for embedded errors,
// which Reddit reports with HTTP 200
func (c *HTTPClient) checkAPIErrors(body []byte, username string) error {
	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		// Some endpoints return an empty body on success
		return nil
	}

	for _, e := range v.GetArray("json", "errors") {
		items := e.GetArray()
		if len(items) == 0 {
			continue
		}
		code := string(items[0].GetStringBytes())
		if code == "USER_DOESNT_EXIST" {
			return fmt.Errorf("user %s: %w", username, ErrTargetGone)
		}
		return fmt.Errorf("api error %s for user %s", code, username)
	}
	return nil
}
