// FilePath: server/worker/cmd/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/classifier"
	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/server"
)

func main() {
	// Child mode: this same binary hosts the classifier when re-executed
	// by the worker process. No config, no logo, stdio is the protocol.
	if len(os.Args) > 1 && os.Args[1] == classifier.ChildArg {
		if err := classifier.RunChild(); err != nil {
			fmt.Fprintf(os.Stderr, "classifier child failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting VigilHome Worker v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		" _    ___       _ ____  __  __                   ",
		"| |  / (_)___ _(_) / / / /_/ /___  ____ ___  ___ ",
		"| | / / / __ `/ / / /_/ __  / __ \\/ __ `__ \\/ _ \\",
		"| |/ / / /_/ / / / __/ / / / /_/ / / / / / /  __/",
		"|___/_/\\__, /_/_/_/ /_/ /_/\\____/_/ /_/ /_/\\___/ ",
		"      /____/                                     ",
		"......................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
