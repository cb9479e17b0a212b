package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hidock/jensen-client/internal/config"
	"github.com/hidock/jensen-client/jensen"
)

var (
	configPath     = flag.String("config", "", "path to a YAML config file (optional)")
	cachePath      = flag.String("cache", "", "override the recordings cache file path")
	listenAddr     = flag.String("listen", "", "override the HTTP listen address")
	autoReconnect  = flag.Duration("reconnect-interval", 5*time.Second, "how often to attempt auto-reconnect while disconnected")
	connectOnStart = flag.Bool("connect", true, "attempt an initial connect on startup")
)

// agent owns a single jensen.Client and exposes it over HTTP. It is the
// ambient analogue of the teacher's Orchestrator: one long-running process,
// one hardware handle, route handlers that call into it. The mutex guards
// only lastError.
type agent struct {
	client *jensen.Client

	mu        sync.RWMutex
	lastError string
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("jensen-agent: loading config: %v", err)
	}
	if *cachePath != "" {
		cfg.CachePath = *cachePath
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	jcfg := jensen.DefaultConfig()
	jcfg.Transport.ConfigNum = cfg.Transport.ConfigNum
	jcfg.Transport.InterfaceNum = cfg.Transport.InterfaceNum
	jcfg.Transport.OutEndpoint = cfg.Transport.OutEndpoint
	jcfg.Transport.InEndpoint = cfg.Transport.InEndpoint
	jcfg.RetryPolicy.MaxRetryAttempts = cfg.Retry.MaxAttempts
	jcfg.RetryPolicy.RetryDelay = cfg.Retry.Delay
	jcfg.RetryPolicy.MaxErrorThreshold = cfg.Retry.MaxErrorThreshold
	jcfg.CommandTimeout = cfg.Timeouts.Command
	jcfg.StreamQuiet = cfg.Timeouts.StreamQuiet
	jcfg.StreamOverall = cfg.Timeouts.StreamOverall
	jcfg.DownloadChunkWait = cfg.Timeouts.DownloadChunkWait
	jcfg.DownloadOverall = cfg.Timeouts.DownloadOverall
	jcfg.Store = jensen.NewFileKeyValueStore(cfg.CachePath)
	jcfg.Logger = log.Default()

	a := &agent{client: jensen.New(jcfg)}

	if *connectOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := a.client.Connect(ctx); err != nil {
			log.Printf("jensen-agent: initial connect failed, will keep retrying: %v", err)
			a.setLastError(err)
		}
		cancel()
	}

	stopReconnect := make(chan struct{})
	go a.runReconnectLoop(*autoReconnect, stopReconnect)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", a.handleStatus)
		api.POST("/connect", a.handleConnect)
		api.POST("/disconnect", a.handleDisconnect)
		api.GET("/recordings", a.handleListRecordings)
		api.GET("/storage", a.handleStorage)
		api.GET("/settings", a.handleGetSettings)
		api.DELETE("/recordings/:name", a.handleDeleteRecording)
		api.GET("/recordings/:name/download", a.handleDownloadRecording)
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		log.Printf("jensen-agent: listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("jensen-agent: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("jensen-agent: shutting down...")
	close(stopReconnect)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("jensen-agent: shutdown error: %v", err)
	}
	a.client.Disconnect(true)
	log.Println("jensen-agent: stopped")
}

// runReconnectLoop periodically calls Client.AutoReconnect (spec §4.9),
// which itself no-ops while the client is connected or connecting, and
// after a user-initiated disconnect until the next successful connect.
func (a *agent) runReconnectLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := a.client.AutoReconnect(ctx); err != nil {
				a.setLastError(err)
			}
			cancel()
		}
	}
}

func (a *agent) setLastError(err error) {
	a.mu.Lock()
	a.lastError = err.Error()
	a.mu.Unlock()
}

func (a *agent) getLastError() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastError
}

func (a *agent) handleStatus(c *gin.Context) {
	state, sub := a.client.State()
	c.JSON(http.StatusOK, gin.H{
		"state":      state.String(),
		"sub_status": sub.String(),
		"last_error": a.getLastError(),
	})
}

func (a *agent) handleConnect(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	if err := a.client.Connect(ctx); err != nil {
		a.setLastError(err)
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "connected"})
}

func (a *agent) handleDisconnect(c *gin.Context) {
	if err := a.client.Disconnect(true); err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "disconnected"})
}

func (a *agent) handleListRecordings(c *gin.Context) {
	forceRefresh := c.Query("refresh") == "true"
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()
	recs, err := a.client.ListRecordings(ctx, forceRefresh)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

func (a *agent) handleStorage(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	info, err := a.client.GetStorageInfo(ctx)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (a *agent) handleGetSettings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	settings, err := a.client.GetSettings(ctx)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (a *agent) handleDeleteRecording(c *gin.Context) {
	name := c.Param("name")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	if err := a.client.DeleteFile(ctx, name); err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("deleted %s", name)})
}

func (a *agent) handleDownloadRecording(c *gin.Context) {
	name := c.Param("name")
	var declaredSize uint32
	if _, err := fmt.Sscanf(c.Query("size"), "%d", &declaredSize); err != nil || declaredSize == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query param size must be a positive integer"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 90*time.Second)
	defer cancel()
	data, err := a.client.GetFileBlock(ctx, name, declaredSize)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// writeClientError maps a jensen.Error's Kind to an HTTP status (spec §7's
// error taxonomy), falling back to 500 for anything unrecognized.
func writeClientError(c *gin.Context, err error) {
	kind, _ := jensen.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case jensen.KindDeviceNotFound, jensen.KindDeviceNotConnected:
		status = http.StatusServiceUnavailable
	case jensen.KindPermissionDenied:
		status = http.StatusForbidden
	case jensen.KindTimeout, jensen.KindTransportStalled:
		status = http.StatusGatewayTimeout
	case jensen.KindCancelled:
		status = http.StatusRequestTimeout
	case jensen.KindProtocolError:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
