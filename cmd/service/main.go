package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"crosspost-connect/internal/service"
	"crosspost-connect/internal/version"
)

func main() {
	// Define command line flags
	install := flag.Bool("install", false, "Install and start the Windows service")
	uninstall := flag.Bool("uninstall", false, "Stop and remove the Windows service")
	start := flag.Bool("start", false, "Start the Windows service")
	stop := flag.Bool("stop", false, "Stop the Windows service")
	debug := flag.Bool("debug", false, "Run under the Windows service debug harness")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("crosspost-connect %s\n", version.Version)
		os.Exit(0)
	}

	// Get executable path
	exePath, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}

	// Change to executable directory for config loading
	if err := os.Chdir(filepath.Dir(exePath)); err != nil {
		log.Printf("Warning: could not change to executable directory: %v", err)
	}

	switch {
	case *install:
		err = service.InstallService(exePath)
		if err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}
		fmt.Println("Service installed successfully")

		// Start the service after installation
		err = service.StartService()
		if err != nil {
			log.Printf("Warning: Failed to start service: %v", err)
			fmt.Println("You may need to start the service manually")
		} else {
			fmt.Println("Service started")
		}

	case *uninstall:
		// Try to stop service first
		_ = service.StopService()

		err = service.UninstallService()
		if err != nil {
			log.Fatalf("Failed to uninstall service: %v", err)
		}
		fmt.Println("Service uninstalled successfully")

	case *start:
		err = service.StartService()
		if err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}
		fmt.Println("Service started")

	case *stop:
		err = service.StopService()
		if err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}
		fmt.Println("Service stopped")

	default:
		// Check if running as Windows service
		isService, err := service.IsWindowsService()
		if err != nil {
			log.Printf("Warning: could not determine if running as service: %v", err)
		}

		app := service.NewApplication()

		if isService {
			// Running as Windows service
			service.RunService(false, app)
		} else if *debug {
			// Running in debug mode
			service.RunService(true, app)
		} else {
			// Running in console mode
			printBanner()
			app.Run()
			if err := app.Err(); err != nil {
				os.Exit(1)
			}
		}
	}
}

func printBanner() {
	fmt.Printf("Crosspost Connect %s\n", version.Version)
	fmt.Println("Running in console mode. Press Ctrl+C to stop.")
	fmt.Println()
	fmt.Println("Configuration: config.yaml in ./ or ./config, overridden by env (e.g. OAUTH_STATE_BACKEND)")
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET    /health")
	fmt.Println("  GET    /redirect/oauth/:provider        provider callback (public)")
	fmt.Println("  GET    /api/v1/connections/...          requires X-API-Key and X-User-ID headers")
	fmt.Println()
	fmt.Println("Windows service commands:")
	fmt.Println("  -install    Install and start the service")
	fmt.Println("  -uninstall  Stop and remove the service")
	fmt.Println("  -start      Start the service")
	fmt.Println("  -stop       Stop the service")
	fmt.Println("  -debug      Run under the service debug harness")
	fmt.Println("  -version    Show version")
	fmt.Println()
}
