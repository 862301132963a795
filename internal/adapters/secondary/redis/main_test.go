package redis

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// testClient is a shared Redis client used by all tests in this package.
var testClient *goredis.Client

// TestMain sets up and tears down the test Redis container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	log.Println("Setting up Redis container...")
	redisContainer, err := tcredis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	if err != nil {
		log.Fatalf("could not start redis container: %v", err)
	}

	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			log.Fatalf("could not terminate redis container: %v", err)
		}
	}()

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("could not get connection string: %v", err)
	}

	opts, err := goredis.ParseURL(connStr)
	if err != nil {
		log.Fatalf("could not parse redis URL: %v", err)
	}
	testClient = goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := testClient.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("could not ping redis: %v", err)
	}

	code := m.Run()

	os.Exit(code)
}
