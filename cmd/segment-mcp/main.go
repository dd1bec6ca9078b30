package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/controller"
	"github.com/ironsheep/segment-tools-mcp/internal/logger"
	_ "github.com/ironsheep/segment-tools-mcp/internal/provider/kmeans"  // Register the k-means provider
	_ "github.com/ironsheep/segment-tools-mcp/internal/provider/textseg" // Register the text provider
	"github.com/ironsheep/segment-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("segment-tools-mcp - MCP server for semantic image segmentation")
	fmt.Println()
	fmt.Println("Usage: segment-tools-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from ./.env):")
	fmt.Printf("  %-32s debug, info, warn or error\n", config.KeyLogLevel)
	fmt.Printf("  %-32s text or json\n", config.KeyLogFormat)
	fmt.Printf("  %-32s model loaded at startup (pascal)\n", config.KeyDefaultModel)
	fmt.Printf("  %-32s DeepLab model server URL\n", config.KeyModelServer)
	fmt.Printf("  %-32s model request timeout (60s)\n", config.KeyModelTimeout)
	fmt.Printf("  %-32s weight precision 1, 2 or 4\n", config.KeyQuantization)
	fmt.Printf("  %-32s longest side sent to a model (513)\n", config.KeyMaxDimension)
	fmt.Printf("  %-32s image cache size in bytes\n", config.KeyCacheBytes)
	fmt.Printf("  %-32s default overlay opacity (0.5)\n", config.KeyOverlayOpacity)
	fmt.Printf("  %-32s clusters for the kmeans model (4)\n", config.KeyKMeansClusters)
	fmt.Printf("  %-32s word confidence for the text model (0.5)\n", config.KeyTextMinConfidence)
	fmt.Printf("  %-32s tesseract language (eng)\n", config.KeyTextLanguage)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("segment-tools-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		}
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	// Stdout is reserved for MCP frames.
	log := logger.New(cfg)
	logrus.SetOutput(log.Out)
	logrus.SetLevel(log.GetLevel())
	logrus.SetFormatter(log.Formatter)

	entry := logrus.NewEntry(log).WithField("version", Version)
	entry.WithFields(logrus.Fields{
		"build_time": BuildTime,
		"commit":     GitCommit,
		"model":      cfg.DefaultModel,
	}).Debug("starting segment-tools-mcp")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithEntry(ctx, entry)

	// The default model loads once the client has finished the handshake,
	// so its progress notifications follow the initialize response.
	var srv *server.Server
	srv = server.New(cfg,
		server.WithVersion(Version),
		server.WithInitHook(func(ctx context.Context) {
			if cfg.DefaultModel == "" {
				return
			}
			err := srv.Controller().Dispatch(ctx, controller.LoadModel{Name: cfg.DefaultModel})
			if err != nil {
				entry.WithError(err).Warn("default model not loaded")
			}
		}),
	)

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		entry.WithError(err).Fatal("server error")
	}
}
