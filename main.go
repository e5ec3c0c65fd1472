package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aperso/monochat/internal/chzzk"
	"github.com/aperso/monochat/internal/config"
	"github.com/aperso/monochat/internal/health"
	"github.com/aperso/monochat/internal/message"
	"github.com/aperso/monochat/internal/recorder"
	"github.com/aperso/monochat/internal/soop"
	"github.com/aperso/monochat/internal/uploader"
)

// connector is one platform connection attempt feeding the shared
// message channel until its stream ends.
type connector interface {
	Start(ctx context.Context, messageChan chan<- message.Message) error
}

func main() {
	log.Println("Monochat starting...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Configuration loaded successfully")

	if len(cfg.Chzzk.URLs) > 0 {
		log.Printf("Monitoring %d Chzzk channels", len(cfg.Chzzk.URLs))
	}
	if len(cfg.Soop.URLs) > 0 {
		log.Printf("Monitoring %d Soop channels", len(cfg.Soop.URLs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	messageChan := make(chan message.Message, cfg.Recorder.BufferSize)
	fileChan := make(chan string, 100)

	var connectors []connector
	for _, url := range cfg.Chzzk.URLs {
		connectors = append(connectors, chzzk.New(url))
	}
	for _, url := range cfg.Soop.URLs {
		connectors = append(connectors, soop.New(url))
	}

	rec := recorder.New(
		cfg.Recorder.OutputDir,
		cfg.Recorder.BufferSize,
		cfg.Recorder.RotateMinutes,
		cfg.Recorder.RotateMegabytes,
	)

	var up *uploader.Uploader
	if cfg.UploadEnabled() {
		up, err = uploader.New(ctx, uploader.Options{
			Bucket:            cfg.S3.Bucket,
			Region:            cfg.S3.Region,
			RoleARN:           cfg.S3.RoleARN,
			TokenFile:         cfg.S3.WebIdentityTokenFile,
			AccessKeyID:       cfg.S3.AccessKeyID,
			SecretAccessKey:   cfg.S3.SecretAccessKey,
			DeleteAfterUpload: cfg.Uploader.DeleteAfterUpload,
			MaxRetries:        cfg.Uploader.MaxRetries,
		})
		if err != nil {
			log.Fatalf("Failed to create uploader: %v", err)
		}
		if err := up.ScanExisting(cfg.Recorder.OutputDir, fileChan); err != nil {
			log.Printf("Warning: failed to scan for existing files: %v", err)
		}
	} else {
		log.Println("No S3 bucket configured, recording locally only")
	}

	var activeStreams atomic.Int64
	healthServer := health.New(":8080", func() int {
		return int(activeStreams.Load())
	})

	var wg sync.WaitGroup

	for _, conn := range connectors {
		wg.Add(1)
		go func(conn connector) {
			defer wg.Done()
			activeStreams.Add(1)
			defer activeStreams.Add(-1)
			if err := conn.Start(ctx, messageChan); err != nil && err != context.Canceled {
				log.Printf("Connector error: %v", err)
			}
		}(conn)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rec.Start(ctx, messageChan, fileChan); err != nil && err != context.Canceled {
			log.Printf("Recorder error: %v", err)
		}
	}()

	if up != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := up.Start(ctx, fileChan); err != nil && err != context.Canceled {
				log.Printf("Uploader error: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("Health server error: %v", err)
		}
	}()

	log.Println("All components started successfully")

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down health server: %v", err)
		}

		cancel()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Println("All components stopped gracefully")
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}

		os.Exit(0)
	}()

	wg.Wait()
	log.Println("Monochat stopped")
}
