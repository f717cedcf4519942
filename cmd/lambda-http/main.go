// Command lambda-http serves the generation API from AWS Lambda behind an API Gateway HTTP API.
//
//	GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"docgen-backend/internal/bootstrap"
	"docgen-backend/internal/shared/config"
	"docgen-backend/internal/shared/server/respond"
	"docgen-backend/internal/shared/telemetry"
)

// proxy builds the app on the first invocation and reuses it for the life of the execution environment.
var proxy = sync.OnceValues(func() (*ginadapter.GinLambdaV2, error) {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	app, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return ginadapter.NewV2(app.Router), nil
})

func handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	adapter, err := proxy()
	if err != nil {
		telemetry.Error("lambda.bootstrap.failed", map[string]any{
			"request_id": req.RequestContext.RequestID,
			"error":      err,
		})
		return unavailable(), nil
	}
	return adapter.ProxyWithContext(ctx, req)
}

func unavailable() events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{
		Code:    "internal",
		Message: "Service failed to start",
	}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	lambda.Start(handle)
}
