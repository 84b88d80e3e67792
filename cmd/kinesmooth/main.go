package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.3.0"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "smooth":
		err = runSmooth(args, os.Stdin, os.Stdout, os.Stderr)
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = runServe(ctx, args)
		stop()
	case "import":
		err = runImport(args, os.Stdout)
	case "version":
		fmt.Printf("kinesmooth version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage() {
	fmt.Println(`kinesmooth - smooth noisy motion-capture trajectories with cubic B-splines

Usage: kinesmooth <command> [options]

Commands:
  smooth     Smooth a trajectory file and write the resampled rows
  serve      Run the HTTP API over a trajectory database
  import     Load a trajectory file into a database
  version    Show kinesmooth version
  help       Show this help message

Trajectory files hold one sample per line and one coordinate per column,
separated by whitespace or commas. Blank lines and lines starting with '#'
are ignored.

Examples:
  # Smooth to stdout with 30 coefficients
  kinesmooth smooth -in wrist.txt -coeffs 30

  # Smooth, resample to 200 points and plot every channel
  kinesmooth smooth -in wrist.txt -out wrist.smooth -samples 200 -plot wrist.png

  # Serve the API with settings from a file
  kinesmooth serve -addr :8080 -config smoothing.yaml

Run 'kinesmooth <command> -h' for the options of a command.`)
}
