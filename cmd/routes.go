package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)

	mux := pat.New()

	mux.Get("/health", standardMiddleware.ThenFunc(app.health))

	// Sales
	mux.Get("/sales/:uid", standardMiddleware.ThenFunc(app.saleHandler.GetSale))
	mux.Post("/sales/:uid/process", standardMiddleware.ThenFunc(app.saleHandler.EnqueueSale))

	// Queue
	mux.Get("/queue", standardMiddleware.ThenFunc(app.saleHandler.QueueCounts))
	mux.Get("/queue/dead", standardMiddleware.ThenFunc(app.saleHandler.DeadJobs))
	mux.Post("/queue/dead/:uid/retry", standardMiddleware.ThenFunc(app.saleHandler.RetryDeadJob))

	return mux
}

func (app *application) health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"status":"ok"}`))
}
