package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitUnreachable  = 3
	ExitRejected     = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "serve":
		return runServe(cmdArgs)
	case "add":
		return runAdd(cmdArgs)
	case "list":
		return runList(cmdArgs)
	case "pause", "resume":
		return runControl(command, cmdArgs)
	case "rm":
		return runRemove(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: reelctl <command> [options]

Commands:
  serve    Run the download engine headless with its HTTP control interface
  add      Submit a video page URL or a descriptor JSON file
  list     Show task records
  pause    Pause a downloading task
  resume   Resume a paused task
  rm       Delete a finished task record

Run 'reelctl <command> -h' for command-specific help.`)
}
