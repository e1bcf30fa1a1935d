package router

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"testing"
	"time"

	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/goccy/go-json"
	"github.com/mbeoliero/parley/internal/config"
	"github.com/mbeoliero/parley/internal/directory"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/handler"
	"github.com/mbeoliero/parley/internal/repository"
	"github.com/mbeoliero/parley/internal/service"
	"github.com/mbeoliero/parley/internal/testutil"
	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/mbeoliero/parley/pkg/jwt"
	"github.com/mbeoliero/parley/pkg/objstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice   int64 = 11
	bob     int64 = 12
	company int64 = 500
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	engine *route.Engine
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "router-test-secret"
	cfg.JWT.Issuer = "parley-test"
	cfg.ApplyDefaults()

	_, rdb := testutil.NewRedis(t)
	repos := repository.NewRepositoriesWith(testutil.NewDB(t), rdb)
	dir := directory.NewStaticDirectory(
		&entity.Profile{Id: alice, DisplayName: "Alice"},
		&entity.Profile{Id: bob, DisplayName: "Bob"},
		&entity.Profile{Id: company, DisplayName: "Venue Ltd", IsCompany: true},
	)

	convs := service.NewConversationService(repos, dir)
	threads := service.NewThreadService(repos, dir)
	msgs := service.NewMessageService(repos, threads, cfg.History)
	attachments := service.NewAttachmentService(objstore.NewMemoryStore("https://cdn.test"), rdb, cfg.Attachment)
	msgs.SetAttachmentClaimer(attachments)
	attachments.SetReferenceChecker(repos.Message)

	engine := route.NewEngine(hzconfig.NewOptions(nil))
	SetupRouter(engine, &Handlers{
		Profile:      handler.NewProfileHandler(service.NewProfileService(dir)),
		Conversation: handler.NewConversationHandler(convs, threads),
		Thread:       handler.NewThreadHandler(threads),
		Message:      handler.NewMessageHandler(msgs),
		Attachment:   handler.NewAttachmentHandler(attachments),
	}, cfg)
	return &testServer{engine: engine, cfg: cfg}
}

func (s *testServer) token(t *testing.T, userId int64) string {
	t.Helper()
	token, err := jwt.GenerateToken(userId, s.cfg.JWT.Secret, s.cfg.JWT.Issuer, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, url string, userId int64, body any) (int, envelope) {
	t.Helper()
	headers := []ut.Header{{Key: "Content-Type", Value: "application/json"}}
	if userId != 0 {
		headers = append(headers, ut.Header{Key: "Authorization", Value: "Bearer " + s.token(t, userId)})
	}
	var reqBody *ut.Body
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = &ut.Body{Body: bytes.NewReader(raw), Len: len(raw)}
	}
	return decode(t, ut.PerformRequest(s.engine, method, url, reqBody, headers...))
}

func decode(t *testing.T, w *ut.ResponseRecorder) (int, envelope) {
	t.Helper()
	resp := w.Result()
	var env envelope
	if len(resp.Body()) > 0 {
		require.NoError(t, json.Unmarshal(resp.Body(), &env), string(resp.Body()))
	}
	return resp.StatusCode(), env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := ut.PerformRequest(s.engine, "GET", "/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "ok")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, "GET", "/conversation/list", 0, nil)
	assert.Equal(t, 401, status)
	assert.Equal(t, errcode.ErrTokenMissing.Code, env.Code)

	w := ut.PerformRequest(s.engine, "GET", "/thread/list", nil,
		ut.Header{Key: "Authorization", Value: "Bearer not-a-token"})
	status, env = decode(t, w)
	assert.Equal(t, 401, status)
	assert.Equal(t, errcode.ErrTokenInvalid.Code, env.Code)

	expired, err := jwt.GenerateToken(alice, s.cfg.JWT.Secret, s.cfg.JWT.Issuer, -time.Minute)
	require.NoError(t, err)
	w = ut.PerformRequest(s.engine, "GET", "/thread/list", nil,
		ut.Header{Key: "Authorization", Value: "Bearer " + expired})
	_, env = decode(t, w)
	assert.Equal(t, errcode.ErrTokenExpired.Code, env.Code)
}

func TestConversationFlow(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, "POST", "/conversation/open", alice, map[string]any{"peer_user_id": bob})
	require.Equal(t, 0, env.Code, env.Msg)
	var conv entity.ConversationInfo
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	assert.Equal(t, bob, conv.PeerUserId)
	assert.Equal(t, "Bob", conv.Peer.DisplayName)

	_, env = s.do(t, "POST", "/conversation/open", bob, map[string]any{"peer_user_id": alice})
	var again entity.ConversationInfo
	require.NoError(t, json.Unmarshal(env.Data, &again))
	assert.Equal(t, conv.ConversationId, again.ConversationId)

	_, env = s.do(t, "POST", "/conversation/msg/send", alice, map[string]any{
		"conversation_id": conv.ConversationId,
		"client_msg_id":   "a-1",
		"body":            "hello bob",
	})
	require.Equal(t, 0, env.Code, env.Msg)

	_, env = s.do(t, "GET", "/unread/summary", bob, nil)
	var summary entity.UnreadSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, entity.UnreadSummary{Total: 1, Conversations: 1}, summary)

	_, env = s.do(t, "GET", fmt.Sprintf("/conversation/msg/history?conversation_id=%d", conv.ConversationId), bob, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	var history service.HistoryResult
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hello bob", history.Messages[0].Body)

	_, env = s.do(t, "POST", "/conversation/mark_read", bob, map[string]any{"conversation_id": conv.ConversationId})
	require.Equal(t, 0, env.Code)
	_, env = s.do(t, "GET", fmt.Sprintf("/conversation/info?conversation_id=%d", conv.ConversationId), bob, nil)
	var info entity.ConversationInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Zero(t, info.UnreadCount)
	assert.Equal(t, "hello bob", info.LastMessagePreview)

	_, env = s.do(t, "GET", "/conversation/info?conversation_id=abc", bob, nil)
	assert.Equal(t, errcode.ErrInvalidParam.Code, env.Code)

	_, env = s.do(t, "POST", "/conversation/open", alice, map[string]any{"peer_user_id": alice})
	assert.Equal(t, errcode.ErrInvalidParticipant.Code, env.Code)
}

func TestThreadFlow(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, "POST", "/thread/create", alice, map[string]any{
		"target_id": company,
		"title":     "Wedding in June",
	})
	require.Equal(t, 0, env.Code, env.Msg)
	var thread entity.ThreadInfo
	require.NoError(t, json.Unmarshal(env.Data, &thread))
	assert.Equal(t, alice, thread.InitiatorId)

	_, env = s.do(t, "POST", "/thread/msg/send", company, map[string]any{
		"thread_id": thread.ThreadId,
		"body":      "we have availability",
	})
	require.Equal(t, 0, env.Code, env.Msg)

	_, env = s.do(t, "POST", "/conversation/msg/send", company, map[string]any{
		"conversation_id": thread.ThreadId,
		"body":            "wrong route",
	})
	assert.Equal(t, errcode.ErrTargetNotFound.Code, env.Code)

	_, env = s.do(t, "POST", "/thread/msg/send", bob, map[string]any{
		"thread_id": thread.ThreadId,
		"body":      "let me in",
	})
	assert.Equal(t, errcode.ErrTargetNotFound.Code, env.Code)

	_, env = s.do(t, "GET", "/thread/list", alice, nil)
	var list []entity.ThreadInfo
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].UnreadCount)

	_, env = s.do(t, "GET", fmt.Sprintf("/thread/msg/history?thread_id=%d&page_size=1", thread.ThreadId), alice, nil)
	var history service.HistoryResult
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history.Messages, 1)
	assert.False(t, history.HasMore)

	_, env = s.do(t, "POST", "/thread/mark_read", alice, map[string]any{"thread_id": thread.ThreadId})
	require.Equal(t, 0, env.Code)
	_, env = s.do(t, "GET", fmt.Sprintf("/thread/info?thread_id=%d", thread.ThreadId), alice, nil)
	var info entity.ThreadInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Zero(t, info.UnreadCount)
}

func TestAttachmentUpload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("policy", "attachment"))
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("bring the seating chart"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := ut.PerformRequest(s.engine, "POST", "/attachment/upload",
		&ut.Body{Body: bytes.NewReader(buf.Bytes()), Len: buf.Len()},
		ut.Header{Key: "Content-Type", Value: mw.FormDataContentType()},
		ut.Header{Key: "Authorization", Value: "Bearer " + s.token(t, alice)},
	)
	_, env := decode(t, w)
	require.Equal(t, 0, env.Code, env.Msg)

	var descs []entity.AttachmentDescriptor
	require.NoError(t, json.Unmarshal(env.Data, &descs))
	require.Len(t, descs, 1)
	assert.Equal(t, "document", descs[0].Kind)
	assert.Equal(t, "notes.txt", descs[0].Name)
	assert.Contains(t, descs[0].URL, "https://cdn.test/")
}

func TestProfileLookup(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, "GET", fmt.Sprintf("/profile/%d", company), alice, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	var info entity.ProfileInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "Venue Ltd", info.DisplayName)

	_, env = s.do(t, "GET", "/profile/info", bob, nil)
	require.Equal(t, 0, env.Code, env.Msg)

	_, env = s.do(t, "GET", "/profile/777777", alice, nil)
	assert.NotZero(t, env.Code)
}
