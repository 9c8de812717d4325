package main

import (
	"flag"
	"os"

	"http-proxy/internal/application"
	"http-proxy/internal/infrastructure/epoll"
	"http-proxy/internal/infrastructure/resolver"
	"http-proxy/pkg/logger"
)

func main() {
	port := flag.Int("port", 7788, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log := logger.Setup(*debug)
	log.Info("Initializing HTTP proxy...")

	eventLoop, err := epoll.New()
	if err != nil {
		log.Error("Failed to create event loop", "error", err)
		os.Exit(1)
	}

	dns, err := resolver.New()
	if err != nil {
		log.Error("Failed to create resolver", "error", err)
		os.Exit(1)
	}

	proxy, err := application.NewProxyService(eventLoop, log, dns, *port)
	if err != nil {
		log.Error("Failed to create proxy service", "error", err)
		os.Exit(1)
	}

	log.Info("Proxy listening", "port", *port)

	if err := proxy.Start(); err != nil {
		log.Error("Proxy stopped unexpectedly", "error", err)
	}
}
