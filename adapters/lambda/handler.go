// Package lambda runs the range service as an AWS Lambda function.
package lambda

import (
	"context"

	"github.com/artpar/maxrange/app"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"
)

// Handler adapts RangeService to the Lambda runtime. The response is the
// soft error object or the list of monthly entries; fatal errors are
// returned to the runtime, which reports the invocation as failed.
type Handler struct {
	service *app.RangeService
	logger  zerolog.Logger
}

// NewHandler creates a Lambda handler.
func NewHandler(service *app.RangeService, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("component", "lambda").Logger(),
	}
}

// Handle processes one event.
func (h *Handler) Handle(ctx context.Context, req app.Request) (any, error) {
	log := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		log = log.With().Str("aws_request_id", lc.AwsRequestID).Logger()
	}

	res, err := h.service.Run(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("invocation failed")
		return nil, err
	}

	log.Debug().
		Str("invocation_id", res.InvocationID).
		Int("ranges", len(res.Ranges)).
		Msg("invocation completed")
	return res.Payload(), nil
}

// Invoker returns the runtime handler, which decodes the JSON event and
// encodes the response.
func (h *Handler) Invoker() lambda.Handler {
	return lambda.NewHandler(h.Handle)
}

// Start blocks serving invocations from the Lambda runtime API.
func (h *Handler) Start() {
	lambda.Start(h.Handle)
}
