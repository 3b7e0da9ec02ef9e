// iscsi-target runs an iSCSI target portal that logs initiators in and
// answers session-level PDUs.
//
// Usage:
//
//	iscsi-target [options]
//
// Options:
//
//	-config   Path to the YAML configuration
//	-target   Target name to expose when no configuration is given
//	-port     TCP port (overrides the configuration)
//	-log      Log level: error, warn, info, debug, trace (default: info)
//
// Example:
//
//	iscsi-target -target iqn.2024-01.com.example:disk1 -port 3260
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/backkem/iscsi/pkg/config"
	"github.com/backkem/iscsi/pkg/login"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/target"
	"github.com/pion/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration")
	targetName := flag.String("target", "", "Target name to expose when no configuration is given")
	port := flag.Int("port", 0, "TCP port (overrides the configuration)")
	level := flag.String("log", "info", "Log level: error, warn, info, debug, trace")
	flag.Parse()

	portal, err := loadConfig(*configPath, *targetName, *port)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	factory := logging.NewDefaultLoggerFactory()
	factory.DefaultLogLevel = parseLevel(*level)

	tgt, err := target.NewTarget(target.Config{
		Portal: portal,
		Callbacks: login.Callbacks{
			OnLoggedIn: func(c *session.Connection) {
				log.Printf("Logged in: %s connection %d", c.Session(), c.CID())
			},
		},
		OnStateChanged: func(state target.State) {
			log.Printf("State changed: %s", state)
		},
		LoggerFactory: factory,
	})
	if err != nil {
		log.Fatalf("Failed to create target: %v", err)
	}

	if err := run(tgt); err != nil {
		log.Fatalf("Target error: %v", err)
	}
}

func loadConfig(path, targetName string, port int) (*config.Config, error) {
	var (
		c   *config.Config
		err error
	)
	if path != "" {
		if c, err = config.Load(path); err != nil {
			return nil, err
		}
	} else {
		c = config.Default()
		if targetName != "" {
			c.Targets = []config.Target{{Name: targetName}}
		}
	}
	if port != 0 {
		c.Port = port
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// run starts the target and blocks until interrupted.
func run(tgt *target.Target) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tgt.Start(); err != nil {
		return fmt.Errorf("start target: %w", err)
	}
	log.Printf("Listening on %s", tgt.Addr())

	<-ctx.Done()

	log.Println("Shutting down...")
	if err := tgt.Stop(); err != nil {
		return fmt.Errorf("stop target: %w", err)
	}
	return nil
}

func parseLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "error":
		return logging.LogLevelError
	case "warn":
		return logging.LogLevelWarn
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelInfo
	}
}
