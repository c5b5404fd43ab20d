package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/config"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/resilience"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.NotAuthenticated()
	}
	return string(s), nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		Endpoints:  config.Endpoints{}.WithDefaults(srv.URL),
		Tokens:     staticToken(token),
		HTTPClient: srv.Client(),
	})
}

func TestNoSessionMakesNoNetworkCall(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}, "")

	_, err := c.ListMyCharacters(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeAuthRequired))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestSendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/ai-chat", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "conv-1", body["conversationId"])
		assert.Equal(t, "hi", body["messageContent"])
		w.Write([]byte(`{"success":true,"message":"hello back"}`))
	}, "tok")

	reply, err := c.SendMessage(context.Background(), "conv-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello back", reply)
}

func TestApplicationFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"model overloaded"}`))
	}, "tok")

	err := c.DeleteMessagesFrom(context.Background(), "conv-1", 3)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeApplication))
	assert.Equal(t, "model overloaded", errors.GetErrorMessage(err))
}

func TestNonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}, "tok")

	err := c.DeleteMessagesFrom(context.Background(), "conv-1", 3)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNoJSON))
	assert.Equal(t, "Server returned no JSON", errors.GetErrorMessage(err))
}

func TestHTTPStatusUsesErrorField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"not yours"}`))
	}, "tok")

	_, err := c.GetCharacter(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeHTTPStatus))
	assert.Equal(t, http.StatusForbidden, errors.GetStatusCode(err))
	assert.Equal(t, "not yours", errors.GetErrorMessage(err))
}

func TestPaginateMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ConversationID string `json:"conversationId"`
			StartingIdx    int    `json:"startingIdx"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 999999, body.StartingIdx)
		w.Write([]byte(`{"success":true,"hasMore":true,"messages":[{"id":"m1","role":"user","content":"a","idx":1},{"id":"m2","role":"character","content":"b","idx":2}]}`))
	}, "tok")

	page, err := c.PaginateMessages(context.Background(), "conv-1", 999999)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, models.RoleCharacter, page.Messages[1].Role)
	assert.Equal(t, "conv-1", page.Messages[0].ConversationID)
}

func TestListCharactersAcceptsBothShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "get-my-characters") {
			w.Write([]byte(`[{"id":"c1","name":"A","prompt":"legacy text","private":true}]`))
			return
		}
		w.Write([]byte(`{"characters":[{"id":"c2","name":"B","prompt":"{\"description\":\"d\",\"startingMessage\":\"s\"}","private":false}]}`))
	}, "tok")

	mine, err := c.ListMyCharacters(context.Background())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "legacy text", mine[0].Prompt.StartingMessage())

	public, err := c.ListPublicCharacters(context.Background())
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "d", public[0].Prompt.Description())
}

func TestCreateCharacterFillsFromRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"new-1"}`))
	}, "tok")

	prompt := models.EncodePrompt(models.StructuredPrompt{Description: "d", StartingMessage: "s"})
	ch, err := c.CreateCharacter(context.Background(), models.CreateCharacterRequest{Name: "Ada", Prompt: prompt})
	require.NoError(t, err)
	assert.Equal(t, "new-1", ch.ID)
	assert.Equal(t, "Ada", ch.Name)
	assert.Equal(t, "s", ch.Prompt.StartingMessage())
	assert.False(t, ch.Private)
}

func TestCreateCharacterUnwrapsAndKeepsEchoedPrompt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"character":{"id":"new-2","name":"Ada"}}`))
	}, "tok")

	prompt := models.EncodePrompt(models.StructuredPrompt{Description: "d", StartingMessage: "s", ImageURL: "https://img/a.png"})
	ch, err := c.CreateCharacter(context.Background(), models.CreateCharacterRequest{Name: "Ada", Prompt: prompt, Private: true})
	require.NoError(t, err)
	assert.Equal(t, "new-2", ch.ID)
	assert.Equal(t, "d", ch.Prompt.Description())
	assert.Equal(t, "https://img/a.png", ch.Prompt.ImageURL())
	assert.True(t, ch.Private)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"new-3","prompt":"{\"description\":\"server\",\"startingMessage\":\"hi\"}"}`))
	}, "tok")
	ch, err = c.CreateCharacter(context.Background(), models.CreateCharacterRequest{Name: "Ada", Prompt: prompt})
	require.NoError(t, err)
	assert.Equal(t, "server", ch.Prompt.Description())
}

func TestPaginateMessagesAcceptsZonelessTimestamps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"hasMore":false,"messages":[{"id":"m1","role":"user","content":"a","idx":1,"createdAt":"2024-05-01T10:00:00.123"},{"id":"m2","role":"character","content":"b","idx":2,"createdAt":"garbage"}]}`))
	}, "tok")

	page, err := c.PaginateMessages(context.Background(), "conv-1", 999999)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC), page.Messages[0].CreatedAt.Time)
	assert.True(t, page.Messages[1].CreatedAt.IsZero())
}

func TestUploadFileSendsContentType(t *testing.T) {
	var got string
	var data []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		got = r.Header.Get("Content-Type")
		data, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}, "tok")

	srvURL := c.endpoints.AIChat[:strings.Index(c.endpoints.AIChat, "/functions")]
	err := c.UploadFile(context.Background(), srvURL+"/upload/a.png", "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)
	assert.Equal(t, "png-bytes", string(data))
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := resilience.Config{Name: "test", FailureThreshold: 2, RetryTimeout: time.Hour, Trip: Retryable}
	c := New(Options{
		Endpoints:  config.Endpoints{}.WithDefaults(srv.URL),
		Tokens:     staticToken("tok"),
		HTTPClient: srv.Client(),
		Breaker:    resilience.New(cfg, nil),
	})

	for i := 0; i < 3; i++ {
		_, _ = c.ListMyConversations(context.Background())
	}
	_, err := c.ListMyConversations(context.Background())
	assert.True(t, errors.HasCode(err, errors.CodeCircuitOpen))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRetryableIgnoresClientErrors(t *testing.T) {
	assert.False(t, Retryable(errors.HTTPStatus(http.StatusBadRequest, "")))
	assert.False(t, Retryable(errors.Application("")))
	assert.True(t, Retryable(errors.NoJSON(http.StatusBadGateway)))
}
