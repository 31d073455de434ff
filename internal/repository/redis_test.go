package repository

import (
	"context"
	"testing"
	"time"

	"github.com/flybeeper/balises-backend/internal/config"
	"github.com/flybeeper/balises-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RedisTestSuite проверяет RedisBlobStore на локальном Redis
type RedisTestSuite struct {
	suite.Suite
	store *RedisBlobStore
	ctx   context.Context
}

// SetupSuite запускается один раз перед всеми тестами
func (suite *RedisTestSuite) SetupSuite() {
	suite.ctx = context.Background()

	cfg := &config.RedisConfig{
		URL:          "redis://localhost:6379",
		DB:           15, // Используем DB 15 для тестов
		PoolSize:     4,
		MinIdleConns: 1,
	}

	var err error
	suite.store, err = NewRedisBlobStore(cfg, utils.NopLogger())
	require.NoError(suite.T(), err)

	if err := suite.store.Ping(suite.ctx); err != nil {
		suite.T().Skip("Redis not available for testing: " + err.Error())
	}
}

// SetupTest очищает тестовую базу
func (suite *RedisTestSuite) SetupTest() {
	require.NoError(suite.T(), suite.store.client.FlushDB(suite.ctx).Err())
}

func (suite *RedisTestSuite) TearDownSuite() {
	if suite.store != nil {
		suite.store.client.FlushDB(suite.ctx)
		suite.store.Close()
	}
}

func (suite *RedisTestSuite) TestContract() {
	testBlobStore(suite.T(), suite.store)
}

func (suite *RedisTestSuite) TestKeyPrefix() {
	require.NoError(suite.T(), suite.store.Put(suite.ctx, "romma.stations", []byte("x")))

	exists, err := suite.store.client.Exists(suite.ctx, CachePrefix+"romma.stations").Result()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), exists)

	ttl, err := suite.store.client.TTL(suite.ctx, CachePrefix+"romma.stations").Result()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), time.Duration(-1), ttl, "cache blobs must not expire")
}

func TestRedisTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis tests in short mode")
	}
	suite.Run(t, new(RedisTestSuite))
}

func TestNewRedisBlobStore_Validation(t *testing.T) {
	_, err := NewRedisBlobStore(nil, utils.NopLogger())
	assert.Error(t, err)

	_, err = NewRedisBlobStore(&config.RedisConfig{URL: "redis://localhost:6379"}, nil)
	assert.Error(t, err)

	_, err = NewRedisBlobStore(&config.RedisConfig{URL: "not a url"}, utils.NopLogger())
	assert.Error(t, err)
}
