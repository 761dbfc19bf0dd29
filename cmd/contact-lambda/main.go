// Command contact-lambda serves POST /api/airtable/contact behind API Gateway.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/figures-solutions/leadchat/cmd/mainconfig"
	"github.com/figures-solutions/leadchat/internal/app/bootstrap"
	appconfig "github.com/figures-solutions/leadchat/internal/config"
	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx := context.Background()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	pool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	stack := bootstrap.BuildLeadStack(cfg, bootstrap.BuildRepository(pool),
		bootstrap.BuildEmailSender(cfg, awsCfg, logger), nil, logger)

	endpoint := leads.NewEndpoint(stack.Service, !cfg.IsProduction(), logger)
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, endpoint, logger, evt)
	})
}

func handle(ctx context.Context, endpoint *leads.Endpoint, logger *logging.Logger, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))

	var resp leads.Response
	body, err := decodeBody(evt)
	if err != nil && method == http.MethodPost {
		logger.Error("failed to decode lambda body", "error", err)
		resp = leads.Response{Status: http.StatusInternalServerError, Body: leads.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to process contact submission",
		}}
	} else {
		resp = endpoint.Process(ctx, method, body)
	}

	headers := leads.CORSHeaders()
	out := events.APIGatewayV2HTTPResponse{StatusCode: resp.Status, Headers: headers}
	if resp.Body == nil {
		return out, nil
	}
	encoded, err := json.Marshal(resp.Body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError, Headers: headers}, nil
	}
	headers["Content-Type"] = "application/json"
	out.Body = string(encoded)
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}
