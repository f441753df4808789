package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kevalkarani/balance-sheet-buddy/internal/gcsuploader"
)

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	bucketName := fs.String("bucket", "", "GCS bucket name (default from config)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local file")
	fs.Parse(args)

	cfg, log, ctx := setup(*configPath)
	if *bucketName == "" {
		*bucketName = cfg.GCS.Bucket
	}
	if *bucketName == "" || *filePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli upload -file PATH [-bucket NAME] [-object NAME]")
		os.Exit(2)
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, gcsuploader.ObjectURI(*bucketName, *objectName))
}
