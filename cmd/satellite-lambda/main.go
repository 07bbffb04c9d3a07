// Package main runs the satellite data API behind API Gateway (HTTP API,
// payload v2). Routes and middleware are shared with satellite-server.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/agrisa/satellite-data-service/internal/boot"
	"github.com/agrisa/satellite-data-service/internal/httpapi"
	"github.com/agrisa/satellite-data-service/internal/logging"
)

func main() {
	logging.Init()
	app := boot.New(context.Background(), "satellite-lambda")
	app.StartupLog(commitHash, buildTime)

	handler := httpapi.New(app.Service, httpapi.Options{AllowedOrigins: app.Config.AllowedOrigins})
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}
