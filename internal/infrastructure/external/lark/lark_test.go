package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

type mockMessageCreator struct {
	requests []*larkim.CreateMessageReq
	resp     *larkim.CreateMessageResp
	err      error
}

func (m *mockMessageCreator) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	id := "om_1"
	return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: &id}}, nil
}

func newTestMessenger(t *testing.T, creator messageCreator) *Messenger {
	return &Messenger{messages: creator, receiveIDType: ReceiveIDTypeEmail, logger: zaptest.NewLogger(t)}
}

func TestMessenger_SendMessage(t *testing.T) {
	creator := &mockMessageCreator{}
	m := newTestMessenger(t, creator)

	require.NoError(t, m.SendMessage(context.Background(), "alice@example.com", `He said "ok"`))
	require.Len(t, creator.requests, 1)

	body := creator.requests[0].Body
	require.NotNil(t, body)
	assert.Equal(t, "alice@example.com", *body.ReceiveId)
	assert.Equal(t, "text", *body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, `He said "ok"`, content["text"])
}

func TestMessenger_Errors(t *testing.T) {
	m := newTestMessenger(t, &mockMessageCreator{})
	assert.Error(t, m.SendMessage(context.Background(), "", "hi"))
	assert.Error(t, m.SendMessage(context.Background(), "alice", ""))

	m = newTestMessenger(t, &mockMessageCreator{err: errors.New("network down")})
	assert.Error(t, m.SendMessage(context.Background(), "alice", "hi"))

	m = newTestMessenger(t, &mockMessageCreator{resp: &larkim.CreateMessageResp{
		CodeError: larkcore.CodeError{Code: 230001, Msg: "invalid receive_id"},
	}})
	err := m.SendMessage(context.Background(), "alice", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230001")
}

type mockSender struct {
	sent    map[string]string
	chats   map[string]string
	sendErr error
}

func newMockSender() *mockSender {
	return &mockSender{sent: map[string]string{}, chats: map[string]string{}}
}

func (m *mockSender) SendMessage(ctx context.Context, receiveID string, content string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent[receiveID] = content
	return nil
}

func (m *mockSender) SendChatMessage(ctx context.Context, chatID string, content string) error {
	m.chats[chatID] = content
	return nil
}

func approvedEvent() *event.Event {
	return &event.Event{
		ID:           "evt-1",
		Type:         event.TypeRequestApproved,
		Domain:       workflow.DomainTransport,
		RequestID:    "T-1",
		NewStatus:    workflow.StatusProcessingWithTransportAdmin,
		ActorName:    "bob",
		ActorRole:    workflow.RoleLineManager,
		RequestorRef: "ou_alice",
		Timestamp:    time.Now(),
	}
}

func TestNotifier_SendsToRequestor(t *testing.T) {
	sender := newMockSender()
	n := NewNotifier(sender, "oc_approvals", zaptest.NewLogger(t))

	require.NoError(t, n.NotifyApproval(context.Background(), approvedEvent()))
	assert.Contains(t, sender.sent["ou_alice"], "transport request T-1 was approved by bob")
	assert.Equal(t, sender.sent["ou_alice"], sender.chats["oc_approvals"])
}

func TestNotifier_Errors(t *testing.T) {
	sender := newMockSender()
	n := NewNotifier(sender, "", zaptest.NewLogger(t))

	evt := approvedEvent()
	evt.RequestorRef = ""
	assert.Error(t, n.NotifyCancellation(context.Background(), evt))

	sender.sendErr = errors.New("rate limited")
	assert.Error(t, n.NotifyRejection(context.Background(), approvedEvent()))
	assert.Empty(t, sender.chats)
}
