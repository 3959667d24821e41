package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-chi/chi/v5"
	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	matineeddb "github.com/matinee-live/matinee-go-push/matinee-ddb"
	matineerest "github.com/matinee-live/matinee-go-push/matinee-rest"
	"github.com/matinee-live/matinee-go-push/matinee-ws/publish"
	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
	"github.com/urfave/cli/v2"
)

var service = matineecli.NewService("broadcast-api")

func main() {
	app := matineecli.App(
		service,
		action,
		append(
			matineecli.CommonFlags,
			matineecli.PortFlag(5002),
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

	env := matineecli.CommonOpts.Env

	var token string
	if env != "local" {
		token, err = matineerest.LoadProducerToken(sess, env)
		if err != nil {
			return err
		}
	}

	ingress := &matineerest.API{
		Publisher: publish.Build(env),
		Subs:      subscriptiondao.Build(api, env),
		Token:     token,
		Logger:    matineecli.Logger(service),
	}

	router := chi.NewRouter()
	matineerest.Middlewares(service, router)
	router.Group(ingress.Routes)

	return matineerest.Webserver(service, router)
}
