package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flatsat/internal/config"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  flatsat run -config flatsat.yaml\n")
	fmt.Fprintf(os.Stderr, "  flatsat compare [-config flatsat.yaml] -before a.jpg -after b.jpg [-out dir]\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "compare":
		compareCmd(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "./flatsat.yaml", "Path to YAML config")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("flatsat starting")
	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run failed: %v", err)
	}
	log.Printf("flatsat stopped")
}

func compareCmd(args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	before := fs.String("before", "", "Image taken before the event")
	after := fs.String("after", "", "Image taken after the event")
	outDir := fs.String("out", "", "Output directory (default output.dir)")
	_ = fs.Parse(args)

	if *before == "" || *after == "" {
		usage()
		os.Exit(2)
	}

	var cfg config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = loaded
	} else if err := config.DefaultAndValidate(&cfg); err != nil {
		log.Fatalf("config defaults invalid: %v", err)
	}
	if *outDir == "" {
		*outDir = cfg.Output.Dir
	}

	if _, err := compareImages(*before, *after, *outDir, cfg.Brightness); err != nil {
		log.Fatalf("compare failed: %v", err)
	}
}
