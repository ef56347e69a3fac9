package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"

	"github.com/derektruong/fxfer-upload"
)

func mustGetEnv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Sprintf("missing env: %q", key))
	}
	return value
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// extractArgs parses `fxfer-upload <endpoint> <file_path>` from the CLI.
func extractArgs(args []string, logger logr.Logger) (endpoint, filePath string, err error) {
	if len(args) != 3 {
		logger.Info(fmt.Sprintf(
			"invalid cli args, expected: %s <backend_endpoint> <file_path>", args[0]),
			"args", args,
		)
		return "", "", fmt.Errorf("invalid cli args")
	}
	return args[1], args[2], nil
}

// handleProgress logs upload progress as a fraction of blocks completed.
func handleProgress(logger logr.Logger) fxfer.ProgressUpdatedCallback {
	return func(fraction float64) {
		logger.Info("upload progress", "fraction", fmt.Sprintf("%.2f", fraction))
	}
}
