package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Receive id types accepted by the messaging API
const (
	ReceiveIDTypeOpenID  = "open_id"
	ReceiveIDTypeUserID  = "user_id"
	ReceiveIDTypeUnionID = "union_id"
	ReceiveIDTypeEmail   = "email"
	ReceiveIDTypeChatID  = "chat_id"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// ReceiveIDType tells Lark how to read the requestor reference, e.g. open_id or email
	ReceiveIDType string
	// ChatID, when set, receives a copy of every notification
	ChatID string
}

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client *lark.Client
	config Config
	logger *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	if cfg.ReceiveIDType == "" {
		cfg.ReceiveIDType = ReceiveIDTypeOpenID
	}

	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &SDKClient{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// Config returns the client configuration
func (c *SDKClient) Config() Config {
	return c.config
}
