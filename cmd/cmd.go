// Package cmd provides the Maquette CLI commands.
//
// Commands:
//   - cli: interactive tool builder with the Bubble Tea TUI (default)
//   - serve: local development backend (generation + artifact store)
//   - artifacts: list and manage saved tools from the command line
//
// Every command handles SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the Maquette CLI.
func Execute() error {
	if len(os.Args) < 2 {
		return runCLI()
	}

	switch os.Args[1] {
	case "cli":
		return runCLI()
	case "serve":
		return runServe()
	case "artifacts":
		return runArtifacts(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Maquette - Build small tools by describing them")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  maquette [cli]                Start the interactive tool builder")
	fmt.Println("  maquette serve [addr]         Start the local dev backend (default: localhost:8787)")
	fmt.Println("  maquette artifacts list       List saved tools")
	fmt.Println("  maquette artifacts show <id>  Show one tool")
	fmt.Println("  maquette artifacts publish <id>")
	fmt.Println("  maquette artifacts archive <id>")
	fmt.Println("  maquette artifacts delete <id>")
	fmt.Println("  maquette --version            Show version information")
	fmt.Println("  maquette --help               Show this help")
	fmt.Println()
	fmt.Println("In the interactive builder:")
	fmt.Println("  Describe your tool, refine the spec, then Ctrl+B builds it.")
	fmt.Println("  /help lists the in-app commands.")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  ~/.maquette/config.yaml, or MAQUETTE_* environment variables")
	fmt.Println("  MAQUETTE_API_TOKEN  API token for hosted backends (optional)")
	fmt.Println("  MAQUETTE_LOG_LEVEL  debug, info, warn, error")
}
