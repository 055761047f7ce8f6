// Command lambda is the AWS Lambda entry point for the CloudWatch MCP
// adapter. It owns the outer invocation deadline and the last-resort error
// envelopes; everything else is delegated to the adapter package.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	adapter "github.com/ViktorPakhai/cloudwatch-mcp-adapter"
	"github.com/ViktorPakhai/cloudwatch-mcp-adapter/bedrock"
)

// handlerTimeout bounds the whole invocation, comfortably under the Lambda
// function timeout so the agent always receives an envelope instead of a
// runtime abort.
const handlerTimeout = 20 * time.Second

var log = slog.New(slog.NewJSONHandler(os.Stderr, nil))

func main() {
	lambda.Start(handle)
}

func handle(ctx context.Context, event bedrock.Event) (bedrock.Envelope, error) {
	log.Info("invocation started",
		"action_group", event.ActionGroup, "api_path", event.APIPath)

	a, err := adapter.Default()
	if err != nil {
		if errors.Is(err, adapter.ErrInvalidConfig) {
			log.Error("configuration error", "error", err)
			return bedrock.FormatError(event.ActionGroup, event.APIPath, event.HTTPMethod,
				"Service configuration error", 500), nil
		}
		log.Error("fatal error building adapter", "error", err)
		return bedrock.FormatError(event.ActionGroup, event.APIPath, event.HTTPMethod,
			"Internal server error", 500), nil
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	done := make(chan bedrock.Envelope, 1)
	go func() {
		done <- a.HandleRequest(ctx, &event)
	}()

	select {
	case env := <-done:
		log.Info("invocation completed", "status", env.Response.HTTPStatusCode)
		return env, nil
	case <-ctx.Done():
		log.Error("invocation timed out waiting for adapter response")
		return bedrock.FormatError(event.ActionGroup, event.APIPath, event.HTTPMethod,
			"Function timeout reaching MCP server", 500), nil
	}
}
