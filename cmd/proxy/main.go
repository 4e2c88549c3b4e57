// Command proxy runs the forwarding HTTP/1.x caching proxy described by
// proxy.conf. Grounded on original_source/proxy_server.c's main(): load
// configuration, open the log file, bind, and run until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/watt-toolkit/proxycache/internal/blacklist"
	"github.com/watt-toolkit/proxycache/internal/cache"
	"github.com/watt-toolkit/proxycache/internal/config"
	"github.com/watt-toolkit/proxycache/internal/logger"
	"github.com/watt-toolkit/proxycache/internal/proxyhandler"
	"github.com/watt-toolkit/proxycache/internal/proxyserver"
	"github.com/watt-toolkit/proxycache/internal/queue"
	"github.com/watt-toolkit/proxycache/internal/workerpool"
)

const shutdownGrace = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		confPath      = flag.String("conf", "proxy.conf", "path to configuration file")
		blacklistPath = flag.String("blacklist", "blacklist.txt", "path to blacklist file")
		logPath       = flag.String("log", "proxy.log", "path to log file")
		port          = flag.Int("port", 0, "override the listening port (0 = use proxy.conf)")
	)
	flag.Parse()

	cfg, err := config.Load(*confPath, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxy: %v\n", err)
		return 1
	}
	if *port != 0 {
		cfg.Port = *port
	}

	entries, err := config.LoadBlacklist(*blacklistPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxy: %v\n", err)
		return 1
	}
	bl := blacklist.New(entries)

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxy: opening log file %q: %v\n", *logPath, err)
		return 1
	}
	defer logFile.Close()
	log := logger.New(logFile)

	log.Info("starting proxy: port=%d threads=%d cache_size_mb=%d element_size_mb=%d blacklist_entries=%d",
		cfg.Port, cfg.Threads, cfg.CacheSizeMB, cfg.ElementSizeMB, bl.Len())

	c := cache.New(cache.Config{
		CacheSizeMax:   cfg.CacheSizeBytes(),
		ElementSizeMax: cfg.ElementSizeBytes(),
	}, log)

	q := queue.New(config.MaxClients)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := proxyserver.New(addr, q, log)

	handler := &proxyhandler.Handler{
		Cache:          c,
		Blacklist:      bl,
		Log:            log,
		Dial:           net.Dial,
		Shutdown:       srv.Done(),
		ElementSizeMax: cfg.ElementSizeBytes(),
	}
	pool := workerpool.New(cfg.Threads, q, handler.Handle, log)
	srv.SetPool(pool)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("%s", err)
			return 1
		}
	case sig := <-sigCh:
		log.Info("received signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown: %s", err)
			return 1
		}
		<-serveErr
	}

	log.Info("proxy stopped")
	return 0
}
