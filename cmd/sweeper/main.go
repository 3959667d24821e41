package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	matineecron "github.com/matinee-live/matinee-go-push/matinee-cron"
	matineeddb "github.com/matinee-live/matinee-go-push/matinee-ddb"
	matineews "github.com/matinee-live/matinee-go-push/matinee-ws"
	"github.com/matinee-live/matinee-go-push/matinee-ws/connectiondao"
	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
	"github.com/urfave/cli/v2"
)

var service = matineecli.NewService("sweeper")

func main() {
	app := matineecli.App(
		service,
		action,
		append(
			matineecli.CommonFlags,
			matineeddb.DDBFlags...,
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

	sweeper := &matineews.Sweeper{
		Connections: conns,
		Registry:    &matineews.Registry{Connections: conns, Subs: subs, Logger: logger},
		Logger:      logger,
		Metrics:     &metrics,
	}

	return matineecron.NewHandler(service, sweeper.Run).Start()
}
