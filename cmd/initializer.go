package main

import (
	"log"

	"nfseBack/internal/handlers"
	"nfseBack/internal/nfse"
	"nfseBack/internal/services"
)

type application struct {
	errorLog    *log.Logger
	infoLog     *log.Logger
	queueName   string
	saleService *services.SaleService
	saleHandler *handlers.SaleHandler
}

// logAdapter satisfies the Infof/Errorf logger used by the nfse packages.
type logAdapter struct {
	infoLog  *log.Logger
	errorLog *log.Logger
}

func (l logAdapter) Infof(format string, args ...interface{})  { l.infoLog.Printf(format, args...) }
func (l logAdapter) Errorf(format string, args ...interface{}) { l.errorLog.Printf(format, args...) }

func initializeApp(deps *nfse.Deps, errorLog *log.Logger, infoLog *log.Logger) (*application, error) {
	sales, err := nfse.Sales(deps)
	if err != nil {
		return nil, err
	}
	q := nfse.NewQueue(deps)

	saleService := &services.SaleService{
		Sales:   sales,
		Queue:   q,
		Options: nfse.JobOptions(deps.Config),
	}

	return &application{
		errorLog:    errorLog,
		infoLog:     infoLog,
		queueName:   q.Name(),
		saleService: saleService,
		saleHandler: &handlers.SaleHandler{Service: saleService},
	}, nil
}
