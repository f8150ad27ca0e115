package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	v1 "ragdesk/handler/http/v1"
	"ragdesk/src/core/rag"
	"ragdesk/src/infrastructure/extractor"
	"ragdesk/src/infrastructure/integrations/gemini"
	"ragdesk/src/infrastructure/integrations/ollama"
	"ragdesk/src/infrastructure/integrations/unstructured"
	"ragdesk/src/storage/minioctrl"
	"ragdesk/src/storage/postgres/bookingctrl"
	"ragdesk/src/storage/postgres/documentctrl"
	"ragdesk/src/storage/redisctrl"
	"ragdesk/src/storage/weaviate"
)

// services holds everything the server and the worker share.
type services struct {
	db        *gorm.DB
	sqlDB     *sql.DB
	redis     *redis.Client
	ollama    *ollama.Client
	weaviate  *weaviate.SDK
	memory    *redisctrl.Memory
	documents *rag.DocumentService
	chat      *rag.ChatService
}

func (s *services) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.sqlDB != nil {
		s.sqlDB.Close()
	}
}

// healthChecks reports one probe per backing service.
func (s *services) healthChecks() map[string]v1.HealthCheck {
	return map[string]v1.HealthCheck{
		"postgres": s.sqlDB.PingContext,
		"redis":    s.memory.Ping,
		"weaviate": s.weaviate.Ready,
		"ollama":   s.ollama.Ping,
	}
}

func openDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newWeaviateSDK() (*weaviate.SDK, error) {
	u, err := url.Parse(viper.GetString("weaviate.url"))
	if err != nil {
		return nil, fmt.Errorf("invalid weaviate url: %w", err)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	wc, err := weaviateClient.NewClient(weaviateClient.Config{
		Host:   u.Host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return weaviate.NewSDK(wc), nil
}

func newGenerator(ctx context.Context, oc *ollama.Client) (rag.Generator, error) {
	switch provider := viper.GetString("llm.provider"); provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, viper.GetString("gemini.api_key"), viper.GetString("gemini.model"))
		if err != nil {
			return nil, err
		}
		return client, nil
	case "ollama":
		return ollama.NewProvider(oc, viper.GetString("ollama.generate_model")), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func newExtractor() (*extractor.Extractor, error) {
	switch backend := viper.GetString("extractor.backend"); backend {
	case extractor.BackendNative:
		return extractor.New(), nil
	case extractor.BackendUnstructured:
		return extractor.New(extractor.WithPartitioner(
			unstructured.NewUnstructuredService(viper.GetString("unstructured.url")),
		)), nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", backend)
	}
}

// buildServices connects to every backing service and assembles the
// document and chat services.
func buildServices(ctx context.Context) (*services, error) {
	s := &services{}
	var err error

	s.db, err = openDatabase()
	if err != nil {
		return nil, err
	}
	s.sqlDB, err = s.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	bucket := viper.GetString("minio.document_bucket")
	if err := minioService.EnsureBucketExists(ctx, bucket); err != nil {
		s.Close()
		return nil, err
	}

	s.ollama = ollama.NewClient(viper.GetString("ollama.url"), &http.Client{
		Timeout: 2 * time.Minute,
	})

	s.weaviate, err = newWeaviateSDK()
	if err != nil {
		s.Close()
		return nil, err
	}
	vectors, err := weaviate.NewSessionStore(s.weaviate, viper.GetString("search.mode"))
	if err != nil {
		s.Close()
		return nil, err
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	s.memory = redisctrl.NewMemory(s.redis, viper.GetDuration("memory.ttl"))

	ex, err := newExtractor()
	if err != nil {
		s.Close()
		return nil, err
	}

	embedModel := viper.GetString("ollama.embed_model")
	s.documents, err = rag.NewDocumentService(ex, minioService, bucket, s.ollama, embedModel, vectors, documentctrl.NewRepository(s.db))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create document service: %w", err)
	}

	generator, err := newGenerator(ctx, s.ollama)
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := []rag.ChatOption{rag.WithTopK(viper.GetInt("search.top_k"))}
	if viper.GetBool("booking.enabled") {
		bookings, err := bookingctrl.NewRepository(s.db)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, rag.WithBookings(bookings))
	}
	s.chat, err = rag.NewChatService(s.ollama, embedModel, vectors, s.memory, generator, opts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create chat service: %w", err)
	}

	return s, nil
}
