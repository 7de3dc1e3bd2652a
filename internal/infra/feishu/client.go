package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

const (
	senderTypeApp = "app"

	// Event handlers must return before Feishu's ack deadline
	resolveTimeout = 2 * time.Second
)

var (
	errNotConnected = errors.New("feishu client not connected")
	errWSStopped    = errors.New("websocket client stopped")
)

// wsRunner is the SDK websocket client. Start blocks for the life of the
// process: it reconnects on its own and does not watch ctx.
type wsRunner interface {
	Start(ctx context.Context) error
}

// Client is the Feishu transport and IM API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	logger    zerolog.Logger
	baseURL   string

	newWS          func(handler *dispatcher.EventDispatcher) wsRunner
	resolveMessage func(ctx context.Context, messageID string) (*domain.ChatEvent, error)

	mu        sync.Mutex
	botOpenID string // Bot's own open_id, fetched on connect
	pending   []domain.ChatEvent
	runErr    error
	connected bool // events are delivered only between Connect and Close
	wsRunning bool
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	c := &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		logger:    log.Component("feishu"),
		baseURL:   "https://open.feishu.cn",
	}
	c.newWS = func(handler *dispatcher.EventDispatcher) wsRunner {
		return larkws.NewClient(appID, appSecret,
			larkws.WithEventHandler(handler),
			larkws.WithLogLevel(larkcore.LogLevelInfo),
		)
	}
	c.resolveMessage = c.GetMessage
	return c
}

// Connect fetches the bot identity and resumes event delivery, starting the
// WebSocket client if it is not already running
func (c *Client) Connect(ctx context.Context) error {
	if err := c.fetchBotOpenID(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to fetch bot open_id, falling back to app identity")
	}

	c.mu.Lock()
	c.pending = nil
	c.runErr = nil
	c.connected = true
	start := !c.wsRunning
	c.wsRunning = true
	c.mu.Unlock()

	if !start {
		c.logger.Info().Msg("websocket already running, resuming event delivery")
		return nil
	}

	c.logger.Info().Msg("starting websocket connection")
	go c.runWS(c.newWS(c.eventDispatcher()))
	return nil
}

// runWS runs the SDK client until it gives up. The next Connect starts a new one.
func (c *Client) runWS(ws wsRunner) {
	err := ws.Start(context.Background())
	if err == nil {
		err = errWSStopped
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.wsRunning = false
	if c.connected && c.runErr == nil {
		c.runErr = fmt.Errorf("websocket: %w", err)
	}
}

func (c *Client) eventDispatcher() *dispatcher.EventDispatcher {
	// Handlers must return quickly so the SDK can ACK
	return dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleMessage(event)
			return nil
		}).
		OnP2MessageReactionCreatedV1(func(ctx context.Context, event *larkim.P2MessageReactionCreatedV1) error {
			if event.Event != nil {
				c.handleReaction(ctx, domain.TypeReactionAdded, reactionData{
					messageID:    event.Event.MessageId,
					reactionType: event.Event.ReactionType,
					operatorType: event.Event.OperatorType,
					userID:       event.Event.UserId,
					actionTime:   event.Event.ActionTime,
				})
			}
			return nil
		}).
		OnP2MessageReactionDeletedV1(func(ctx context.Context, event *larkim.P2MessageReactionDeletedV1) error {
			if event.Event != nil {
				c.handleReaction(ctx, domain.TypeReactionRemoved, reactionData{
					messageID:    event.Event.MessageId,
					reactionType: event.Event.ReactionType,
					operatorType: event.Event.OperatorType,
					userID:       event.Event.UserId,
					actionTime:   event.Event.ActionTime,
				})
			}
			return nil
		})
}

// ReadBatch drains events received since the last call
func (c *Client) ReadBatch(ctx context.Context) ([]domain.ChatEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, errNotConnected
	}
	if c.runErr != nil {
		return nil, c.runErr
	}
	batch := c.pending
	c.pending = nil
	return batch, nil
}

// BotID returns the bot's open_id, or an app-scoped identity when it is unknown.
// Messages sent by apps carry the same identity.
func (c *Client) BotID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botIdentityLocked()
}

func (c *Client) botIdentityLocked() string {
	if c.botOpenID != "" {
		return c.botOpenID
	}
	return "app:" + c.appID
}

// Close stops event delivery. The SDK offers no way to stop its websocket,
// so the connection stays up and events arriving while closed are dropped.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.pending = nil
	return nil
}

// fetchBotOpenID fetches the bot's own open_id
func (c *Client) fetchBotOpenID(ctx context.Context) error {
	// 1. First get tenant_access_token
	tokenReq, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return fmt.Errorf("encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/auth/v3/tenant_access_token/internal",
		bytes.NewReader(tokenReq),
	)
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	tokenResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if tokenResult.Code != 0 {
		return fmt.Errorf("token API error: %s", tokenResult.Msg)
	}

	// 2. Get bot info
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/open-apis/bot/v3/info", nil)
	if err != nil {
		return fmt.Errorf("build bot info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.mu.Lock()
	c.botOpenID = botResult.Bot.OpenID
	c.mu.Unlock()
	c.logger.Info().Str("open_id", botResult.Bot.OpenID).Str("name", botResult.Bot.AppName).Msg("bot identity fetched")
	return nil
}

func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	ev, err := ParseMessageEvent(event, c.BotID())
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping message event")
		return
	}
	c.enqueue(ev)
}

type reactionData struct {
	messageID    *string
	reactionType *larkim.Emoji
	operatorType *string
	userID       *larkim.UserId
	actionTime   *string
}

// handleReaction resolves the reacted message's chat, since reaction events
// do not carry it
func (c *Client) handleReaction(ctx context.Context, eventType string, data reactionData) {
	ev := domain.ChatEvent{
		Kind:      domain.KindOf(eventType),
		Type:      eventType,
		Timestamp: deref(data.actionTime),
	}
	if data.reactionType != nil {
		ev.Reaction = deref(data.reactionType.EmojiType)
	}
	if deref(data.operatorType) == senderTypeApp {
		ev.BotID = c.BotID()
	}
	if data.userID != nil {
		ev.UserID = deref(data.userID.OpenId)
	}

	msgID := deref(data.messageID)
	if msgID == "" {
		c.logger.Warn().Str("type", eventType).Msg("reaction without message_id")
		return
	}
	ev.Item = &domain.ItemRef{Timestamp: msgID}
	if ev.Timestamp == "" {
		ev.Timestamp = msgID
	}

	resolveCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	msg, err := c.resolveMessage(resolveCtx, msgID)
	if err != nil {
		c.logger.Warn().Err(err).Str("message_id", msgID).Msg("failed to resolve reacted message")
	} else if msg != nil {
		ev.Item.Channel = msg.Channel
	}

	c.enqueue(ev)
}

func (c *Client) enqueue(ev domain.ChatEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	c.pending = append(c.pending, ev)
}

// GetMessage fetches a single message by ID. Returns nil, nil when it does not exist.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*domain.ChatEvent, error) {
	req := larkim.NewGetMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get message error: %s", resp.Msg)
	}
	if resp.Data == nil || len(resp.Data.Items) == 0 || resp.Data.Items[0] == nil {
		return nil, nil
	}

	ev := ParseHistoryMessage(resp.Data.Items[0], c.BotID())
	return &ev, nil
}

// GetUserProfile fetches a user's names by open_id
func (c *Client) GetUserProfile(ctx context.Context, openID string) (*domain.Profile, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType("open_id").
		Build()

	resp, err := c.larkCli.Contact.User.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get user error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil {
		return nil, nil
	}

	return &domain.Profile{
		UserID:      openID,
		DisplayName: deref(resp.Data.User.Nickname),
		RealName:    deref(resp.Data.User.Name),
	}, nil
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.logger.Debug().Str(log.FieldChannel, chatID).Msg("message sent")
	return nil
}

// ReplyText replies to a message in its thread
func (c *Client) ReplyText(ctx context.Context, messageID, text string) error {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("reply message error: %s", resp.Msg)
	}

	c.logger.Debug().Str("message_id", messageID).Msg("reply sent")
	return nil
}

// MentionTag formats an @mention in Feishu text markup
func MentionTag(openID, name string) string {
	if name == "" {
		return fmt.Sprintf(`<at user_id="%s"></at>`, openID)
	}
	return fmt.Sprintf(`<at user_id="%s">@%s</at>`, openID, name)
}

func textContent(text string) string {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return string(contentJSON)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
