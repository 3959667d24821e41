package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	matineeddb "github.com/matinee-live/matinee-go-push/matinee-ddb"
	"github.com/matinee-live/matinee-go-push/matinee-ws/connectiondao"
	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
	"github.com/urfave/cli/v2"
)

// DynamoDB expires TTL'd connection records lazily and without a disconnect
// event. This consumer watches the connections table stream and cascades
// subscription deletion when a record is removed, whatever removed it.
var service = matineecli.NewService("connection-stream")

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

	subs := subscriptiondao.Build(api, matineecli.CommonOpts.Env)

	onRemove := func(ctx context.Context, oldValue map[string]*dynamodb.AttributeValue) error {
		var conn connectiondao.Connection
		if err := matineeddb.ParseItem(oldValue, &conn); err != nil {
			return err
		}
		if conn.ConnectionID == "" {
			return nil
		}
		return subs.DeleteByConnection(ctx, conn.ConnectionID)
	}

	handler := matineeddb.NewHandler(service, nil, nil, onRemove)
	return handler.Start()
}
