package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/config"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/server"
)

// Exit codes the framework init script acts on.
const (
	exitOK     = 0
	exitError  = 1
	exitReboot = 2 // an app's fault policy demands a system reboot
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override the environment.
	port := flag.String("port", cfg.Server.Port, "IPC surface port")
	appsConfig := flag.String("apps-config", cfg.Apps.ConfigPath, "Apps configuration tree (TOML)")
	installDir := flag.String("install-dir", cfg.Apps.InstallDir, "Apps install directory")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Apps.ConfigPath = *appsConfig
	cfg.Apps.InstallDir = *installDir

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create supervisor: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(context.Background())
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		os.Exit(exitOK)

	case <-srv.RebootRequested():
		log.Println("Application fault demands a system reboot")
		srv.Close()
		os.Exit(exitReboot)

	case err := <-errChan:
		if err != nil {
			log.Printf("Supervisor error: %v", err)
			os.Exit(exitError)
		}
	}
}
