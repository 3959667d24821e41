// Package matineecron provides utilities for building scheduled Lambda
// functions.
package matineecron

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	"github.com/rs/zerolog"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service matineecli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service matineecli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		logger:  matineecli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("running scheduled task")
	return h.runOnce(ctx)
}

func (h *Handler) Start() error {
	switch {
	case matineecli.CommonOpts.Console:
		return h.runOnce(context.Background())

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
