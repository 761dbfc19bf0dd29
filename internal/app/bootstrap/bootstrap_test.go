package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figures-solutions/leadchat/internal/chat"
	appconfig "github.com/figures-solutions/leadchat/internal/config"
	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/internal/notify"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	logger := logging.New("error")
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true))

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true))
}

func TestBuildSessionStore(t *testing.T) {
	logger := logging.New("error")
	_, isMemory := BuildSessionStore(nil, time.Minute, logger).(*chat.MemoryStore)
	assert.True(t, isMemory)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, false)
	defer client.Close()
	_, isRedis := BuildSessionStore(client, time.Minute, logger).(*chat.RedisStore)
	assert.True(t, isRedis)
}

func TestBuildPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, BuildPostgresPool(context.Background(), "", logging.New("error")))
	_, isMemory := BuildRepository(nil).(*leads.InMemoryRepository)
	assert.True(t, isMemory)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")

	assert.Nil(t, BuildEmailSender(&appconfig.Config{EmailProvider: "stub"}, nil, logger), "no recipients")

	cfg := &appconfig.Config{NotifyEmailTo: "owner@example.com", EmailProvider: "sendgrid"}
	assert.Nil(t, BuildEmailSender(cfg, nil, logger), "sendgrid without key")

	cfg.SendGridAPIKey = "SG.test"
	_, isSendGrid := BuildEmailSender(cfg, nil, logger).(*notify.SendGridSender)
	assert.True(t, isSendGrid)

	cfg.EmailProvider = "ses"
	assert.Nil(t, BuildEmailSender(cfg, nil, logger), "ses without aws config")
	_, isSES := BuildEmailSender(cfg, &aws.Config{Region: "us-east-1"}, logger).(*notify.SESSender)
	assert.True(t, isSES)

	cfg.EmailProvider = "stub"
	_, isStub := BuildEmailSender(cfg, nil, logger).(*notify.StubEmailSender)
	assert.True(t, isStub)
}

func TestBuildLeadStack(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{}

	stack := BuildLeadStack(cfg, nil, nil, nil, logger)
	require.NotNil(t, stack.Service)
	assert.Same(t, stack.Service, stack.Chat)

	_, err := stack.Service.Submit(context.Background(), leads.ContactRecord{Name: "Jane", Email: "jane@example.com", Phone: "6162285159"})
	assert.ErrorIs(t, err, leads.ErrNotConfigured)

	cfg.ContactEndpointURL = "https://example.com"
	stack = BuildLeadStack(cfg, nil, nil, nil, logger)
	_, isRemote := stack.Chat.(*leads.RemoteSubmitter)
	assert.True(t, isRemote)
}

func TestBuildEngines(t *testing.T) {
	logger := logging.New("error")

	engines, err := BuildEngines(&appconfig.Config{ChatScript: chat.ScriptContactFirst}, nil, nil, logger)
	require.NoError(t, err)
	require.Len(t, engines, 2)
	assert.Equal(t, chat.ScriptContactFirst, engines[0].Script().Name)

	_, err = BuildEngines(&appconfig.Config{ChatScript: "missing"}, nil, nil, logger)
	assert.Error(t, err)

	_, err = BuildEngines(&appconfig.Config{ChatScriptPath: "does-not-exist.yaml"}, nil, nil, logger)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, splitList(" a@example.com, ,b@example.com "))
	assert.Nil(t, splitList(""))
}
