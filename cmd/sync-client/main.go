package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"cardhub/internal/catalog"
	"cardhub/pkg/utils"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP sync server address")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger, err := utils.NewLogger(utils.LoggingConfig{Level: *logLevel})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("sync-client")

	for {
		if err := run(*addr, *pretty, logger); err != nil {
			logger.Warn("disconnected", zap.Error(err))
		}
		time.Sleep(1 * time.Second) // auto reconnect
	}
}

func run(addr string, pretty bool, logger *zap.Logger) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	logger.Info("connected", zap.String("addr", addr))

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()

		var ev catalog.Event
		if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
			fmt.Println(string(line))
			continue
		}
		if !pretty {
			fmt.Println(summary(ev))
			continue
		}
		b, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Println(string(b))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func summary(ev catalog.Event) string {
	switch ev.Type {
	case catalog.EventCatalogReloaded:
		if ev.Stats != nil {
			return fmt.Sprintf("%s %s owned %d/%d, %d diagnostics", ev.Type, ev.Generation, ev.Stats.OwnedCards, ev.Stats.TotalCards, ev.Diagnostics)
		}
	case catalog.EventOwnershipUpdated:
		return fmt.Sprintf("%s %s = %d", ev.Type, ev.Identity, ev.Count)
	case catalog.EventReloadFailed:
		return fmt.Sprintf("%s: %s", ev.Type, ev.Error)
	}
	return ev.Type
}
