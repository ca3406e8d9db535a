package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/craftlab/canvas-gateway/internal/adapter/cache"
	"github.com/craftlab/canvas-gateway/internal/bootstrap"
	"github.com/craftlab/canvas-gateway/internal/config"
	httptransport "github.com/craftlab/canvas-gateway/internal/http"
	"github.com/craftlab/canvas-gateway/internal/http/handler"
	httpmiddleware "github.com/craftlab/canvas-gateway/internal/http/middleware"
	"github.com/craftlab/canvas-gateway/internal/mailer"
	apimiddleware "github.com/craftlab/canvas-gateway/internal/middleware"
	"github.com/craftlab/canvas-gateway/internal/proxy"
	"github.com/craftlab/canvas-gateway/internal/repository"
	"github.com/craftlab/canvas-gateway/internal/resolver"
	"github.com/craftlab/canvas-gateway/internal/server"
	"github.com/craftlab/canvas-gateway/internal/service"
	"github.com/craftlab/canvas-gateway/internal/telemetry"
	"github.com/craftlab/canvas-gateway/internal/token"
	"github.com/craftlab/canvas-gateway/internal/verifier"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newMongoClient,
			newMongoDatabase,
			newMongoUserRepo,
			newUserRepository,
			newRedisClient,
			newCodeStore,
			newRateLimiter,
			newTokenGenerator,
			newVerifierChain,
			resolver.New,
			newMailer,
			service.NewAuthService,
			service.NewUserService,
			newProxyTable,
			handler.NewAuthHandler,
			handler.NewUserHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureIndexes, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newMongoClient(lc fx.Lifecycle, cfg config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

func newMongoDatabase(client *mongo.Client, cfg config.Config) *mongo.Database {
	return client.Database(cfg.MongoDatabase)
}

func newMongoUserRepo(db *mongo.Database) *repository.MongoUserRepo {
	return repository.NewMongoUserRepo(db)
}

func newUserRepository(repo *repository.MongoUserRepo) repository.UserRepository {
	return repo
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newCodeStore(client redis.UniversalClient) repository.CodeStore {
	return cacheadapter.NewRedisCodeStore(client)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newTokenGenerator(cfg config.Config) *token.Generator {
	return token.NewGenerator(cfg.TokenSigningSecret, cfg.TokenIssuer, cfg.AccessTokenTTL)
}

func newVerifierChain(cfg config.Config, tokens *token.Generator, users repository.UserRepository, logger *zap.Logger) (*verifier.Chain, error) {
	strategies := []verifier.Strategy{verifier.NewLocalStrategy(tokens, users)}

	if cfg.GoogleClientID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.VerifyTimeout)
		defer cancel()
		google, err := verifier.NewGoogleStrategy(ctx, cfg.GoogleClientID, cfg.VerifyTimeout)
		if err != nil {
			return nil, fmt.Errorf("google verifier init: %w", err)
		}
		strategies = append(strategies, google)
	} else {
		logger.Warn("google client id not configured, external credentials disabled")
	}

	return verifier.NewChain(logger, strategies...), nil
}

func newMailer(logger *zap.Logger) mailer.Mailer {
	return mailer.NewLogMailer(logger)
}

func newProxyTable(cfg config.Config, logger *zap.Logger) (*proxy.Table, error) {
	return proxy.NewTable(cfg, logger)
}

func newAuthMiddleware(chain *verifier.Chain, res *resolver.Resolver, logger *zap.Logger) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Chain: chain, Resolver: res, Logger: logger}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
