// Command verifycli runs the forensic verification pipeline over a
// single image file and prints the resulting VerifyResult as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/logger"
	"github.com/sevrusik/turthsnapbot/pkg/verify"
)

func main() {
	logger.Init()
	log := logger.Default()

	path := flag.String("image", "", "path to the image file to verify")
	mode := flag.String("mode", "PHOTO", "PHOTO or DOCUMENT")
	detail := flag.String("detail", "BASIC", "BASIC or DETAILED")
	overridePath := flag.String("config-override", "", "optional directory containing override JSON bundles")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: verifycli -image <path> [-mode PHOTO|DOCUMENT] [-detail BASIC|DETAILED]")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Error("verifycli: reading image failed", "error", err)
		os.Exit(1)
	}

	svc, err := verify.New(*overridePath, log)
	if err != nil {
		log.Error("verifycli: loading rule tables failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	result, err := svc.Verify(ctx, raw, detect.Mode(*mode), detect.Detail(*detail), verify.Collaborators{})
	if err != nil {
		log.Error("verifycli: verification failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("verifycli: encoding result failed", "error", err)
		os.Exit(1)
	}
}
