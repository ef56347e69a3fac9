// Command fxfer-upload is a minimal driver for the upload engine: it
// reads one file from disk and uploads it to a backend endpoint,
// letting the handshake response pick direct PUT or AWS multipart.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"

	"github.com/derektruong/fxfer-upload"
	"github.com/derektruong/fxfer-upload/internal/hostctx"
	"github.com/derektruong/fxfer-upload/internal/restenvelope"
	"github.com/derektruong/fxfer-upload/internal/xferio"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logr.FromSlogHandler(slog.NewJSONHandler(os.Stdout, nil))

	endpoint, filePath, err := extractArgs(os.Args, logger)
	if err != nil {
		os.Exit(2)
	}

	baseURL := mustGetEnv("FXFER_BACKEND_URL")
	region := getEnv("FXFER_AWS_REGION", "us-east-1")
	sessionToken := getEnv("FXFER_SESSION_TOKEN", "")

	adapter := xferio.NewDefaultAdapter(nil)
	rest := restenvelope.NewClient(adapter, baseURL, func(context.Context) (string, bool) {
		return sessionToken, sessionToken != ""
	})
	relay := newRestRelay(rest)

	uploader := fxfer.NewUploader(logger, adapter, rest, relay, region,
		fxfer.WithLogger(logger),
		fxfer.WithProgress(handleProgress(logger)),
		fxfer.WithOnError(func(err error, errCtx fxfer.ErrorContext) error {
			logger.Error(err, "upload phase failed", "phase", errCtx.Phase, "attempt", errCtx.Attempt)
			return err
		}),
	)

	file, err := os.Open(filePath)
	if err != nil {
		logger.Error(err, "failed to open file", "path", filePath)
		os.Exit(1)
	}
	defer file.Close()

	env, err := uploader.Upload(ctx, endpoint, file, "", nil, hostctx.Context{})
	if err != nil {
		logger.Error(err, "upload failed", "endpoint", endpoint, "path", filePath)
		os.Exit(1)
	}
	logger.Info("upload finished", "result", env.Result)
}
