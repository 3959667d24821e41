package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	matineeddb "github.com/matinee-live/matinee-go-push/matinee-ddb"
	matineews "github.com/matinee-live/matinee-go-push/matinee-ws"
	"github.com/matinee-live/matinee-go-push/matinee-ws/connectiondao"
	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
	"github.com/urfave/cli/v2"
)

var (
	service = matineecli.NewService("dispatcher")

	streamName string
)

func main() {
	app := matineecli.App(
		service,
		action,
		append(
			matineecli.CommonFlags,
			matineecli.StringFlag("stream-name", "The stream name to read broadcast events from", &streamName),
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := matineeddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	var (
		env     = matineecli.CommonOpts.Env
		logger  = matineecli.Logger(service)
		conns   = connectiondao.Build(api, env)
		subs    = subscriptiondao.Build(api, env)
		metrics = matineecli.NewMetrics(service, cloudwatch.New(sess))
	)

	registry := &matineews.Registry{Connections: conns, Subs: subs, Logger: logger}
	index := &matineews.Index{Registry: registry, Subs: subs}
	broadcaster := &matineews.Broadcaster{
		Index:    index,
		Registry: registry,
		Pusher:   &matineews.ManagementPusher{},
		Logger:   logger,
		Metrics:  &metrics,
	}

	dispatcher := &matineews.Dispatcher{
		Broadcaster: broadcaster,
		Logger:      logger,
		StreamName:  streamName,
	}
	return dispatcher.Start()
}
