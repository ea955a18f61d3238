package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/gapchat/internal/assets"
	"github.com/4xmen/gapchat/internal/auth"
	"github.com/4xmen/gapchat/internal/chat"
	"github.com/4xmen/gapchat/internal/handlers"
	"github.com/4xmen/gapchat/internal/message"
	"github.com/4xmen/gapchat/internal/store"
	"github.com/4xmen/gapchat/internal/store/mongostore"
	"github.com/4xmen/gapchat/internal/store/sqlstore"
	"github.com/4xmen/gapchat/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(cfg *config.Config) {
	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(handler))
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w responseBodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Debug("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

func serverErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		blw := &responseBodyWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			slog.Error("server error",
				"status", c.Writer.Status(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"ip", c.ClientIP(),
				"duration", time.Since(start).Truncate(time.Millisecond),
				"errors", c.Errors.ByType(gin.ErrorTypeAny).String(),
				"response", strings.TrimSpace(blw.body.String()),
			)
		}
	}
}

func panicRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"error", recovered,
			"stack", string(debug.Stack()),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

func corsMiddleware(origins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origins)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func shouldServeSPA(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}

	if !strings.Contains(c.GetHeader("Accept"), "text/html") {
		return false
	}

	reqPath := c.Request.URL.Path
	if reqPath == "" || strings.HasPrefix(reqPath, "/api/") {
		return false
	}

	// Unknown file-like paths are usually scanner probes.
	if ext := strings.ToLower(path.Ext(reqPath)); ext != "" {
		return false
	}

	return true
}

// spaHandler serves files from dir and falls back to index.html for
// client-side routes.
func spaHandler(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	return func(c *gin.Context) {
		clean := path.Clean("/" + c.Request.URL.Path)
		if clean != "/" {
			candidate := filepath.Join(dir, filepath.FromSlash(clean))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				c.File(candidate)
				return
			}
		}

		if clean != "/" && !shouldServeSPA(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.File(index)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return sqlstore.New(cfg.DatabasePath)
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (assets.BlobStore, error) {
	if cfg.AssetDriver == config.AssetsS3 {
		baseURL := cfg.AssetBaseURL
		if strings.HasPrefix(baseURL, "/") {
			// A local path cannot front a bucket; use its public endpoint.
			baseURL = ""
		}
		slog.Info("using S3 asset storage", "bucket", cfg.AWSBucket, "region", cfg.AWSRegion)
		return assets.NewS3Store(ctx, cfg.AWSBucket, cfg.AWSRegion, baseURL)
	}
	slog.Info("using local asset storage", "dir", cfg.FileStoragePath)
	return assets.NewLocalStore(cfg.FileStoragePath, cfg.AssetBaseURL)
}

func newRouter(cfg *config.Config, st store.Store, blobs assets.BlobStore) *gin.Engine {
	uploader := assets.NewUploader(blobs, cfg.MaxUploadSize)
	authSvc := auth.NewWithTokenTTL(st, uploader, cfg.JWTSecret, cfg.SessionTTL)
	chatSvc := chat.New(st)

	var msgOpts []message.Option
	if cfg.EnforceMessageMembership {
		msgOpts = append(msgOpts, message.WithMembership(chatSvc))
	}
	msgSvc := message.New(st, uploader, msgOpts...)

	router := gin.New()
	router.Use(serverErrorLogger())
	router.Use(requestLogger())
	router.Use(panicRecovery())
	router.Use(corsMiddleware(cfg.CORSOrigins))

	handlers.RegisterRoutes(
		router.Group("/api"),
		handlers.NewAuthHandler(authSvc, !cfg.IsDevelopment()),
		handlers.NewChatHandler(chatSvc),
		handlers.NewMessageHandler(msgSvc),
	)

	if local, ok := blobs.(*assets.LocalStore); ok && strings.HasPrefix(cfg.AssetBaseURL, "/") {
		router.Static(cfg.AssetBaseURL, local.BaseDir)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.StaticDir != "" {
		router.NoRoute(spaHandler(cfg.StaticDir))
	} else {
		router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		})
	}

	return router
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize asset storage: %w", err)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", cfg.Port),
		Handler:           newRouter(cfg, st, blobs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver, "assets", cfg.AssetDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
