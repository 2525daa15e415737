package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vizd/qe/pkg/querier"
	"github.com/vizd/qe/pkg/query"
	"github.com/vizd/qe/pkg/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Querier runs queries on behalf of the API.
type Querier interface {
	Prepare(req querier.Request) (query.Plan, error)
	Run(ctx context.Context, req querier.Request) (querier.Response, error)
	RunStreaming(ctx context.Context, req querier.Request) (querier.Response, error)
}

// QueryRequest is the body of the query and prepare endpoints. Terms hold
// the raw query terms, JSON fragments included, keyed by term name.
type QueryRequest struct {
	QID       string            `json:"qid"`
	Terms     map[string]string `json:"terms"`
	Streaming bool              `json:"streaming"`
}

type QueryResponse struct {
	QID     string              `json:"qid"`
	Table   string              `json:"table"`
	Status  int                 `json:"status"`
	Error   string              `json:"error,omitempty"`
	Batches int                 `json:"batches"`
	Rows    []map[string]string `json:"rows"`
}

type PrepareResponse struct {
	QID        string   `json:"qid"`
	Table      string   `json:"table"`
	NeedsMerge bool     `json:"needs_merge"`
	Windows    []Window `json:"windows"`
}

type Window struct {
	From uint64 `json:"from"`
	End  uint64 `json:"end"`
}

type ErrorResponse struct {
	QID    string `json:"qid,omitempty"`
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// API serves queries over HTTP.
type API struct {
	querier Querier
	store   storage.Store
	logger  log.Logger
}

func New(q Querier, store storage.Store, logger log.Logger) *API {
	return &API{querier: q, store: store, logger: logger}
}

// Register adds the API routes to r. Metrics are served from gatherer
// unless it is nil.
func (a *API) Register(r *mux.Router, gatherer prometheus.Gatherer) {
	r.Path("/api/v1/query").Methods(http.MethodPost).HandlerFunc(a.query)
	r.Path("/api/v1/query/prepare").Methods(http.MethodPost).HandlerFunc(a.prepare)
	r.Path("/ready").Methods(http.MethodGet).HandlerFunc(a.ready)
	if gatherer != nil {
		r.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns a router serving every API route.
func (a *API) Handler(gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()
	a.Register(r, gatherer)
	return r
}

func (a *API) query(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decode(w, r)
	if !ok {
		return
	}
	run := a.querier.Run
	if req.Streaming {
		run = a.querier.RunStreaming
	}
	resp, err := run(r.Context(), req)

	body := QueryResponse{
		QID:     resp.QID,
		Table:   resp.Table,
		Status:  resp.Status,
		Batches: resp.Batches,
		Rows:    []map[string]string{},
	}
	if err != nil {
		body.Error = err.Error()
	} else if resp.Result != nil {
		body.Rows = resp.Result.Maps()
	}
	a.write(w, r, httpStatus(resp.Status), body)
}

func (a *API) prepare(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decode(w, r)
	if !ok {
		return
	}
	plan, err := a.querier.Prepare(req)
	if err != nil {
		status := query.StatusCode(err)
		a.write(w, r, httpStatus(status), ErrorResponse{QID: req.QID, Status: status, Error: err.Error()})
		return
	}
	body := PrepareResponse{
		QID:        req.QID,
		Table:      plan.Table,
		NeedsMerge: plan.NeedsMerge,
		Windows:    make([]Window, 0, len(plan.Windows)),
	}
	for _, win := range plan.Windows {
		body.Windows = append(body.Windows, Window{From: win.From, End: win.End})
	}
	a.write(w, r, http.StatusOK, body)
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ready(r.Context()); err != nil {
		http.Error(w, "storage not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ready\n")
}

func (a *API) decode(w http.ResponseWriter, r *http.Request) (querier.Request, bool) {
	var body QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.write(w, r, http.StatusBadRequest, ErrorResponse{Status: query.StatusBadMessage, Error: "invalid request body: " + err.Error()})
		return querier.Request{}, false
	}
	if body.QID == "" {
		body.QID = uuid.NewString()
	}
	if body.Terms == nil {
		body.Terms = map[string]string{}
	}
	return querier.Request{QID: body.QID, Terms: body.Terms}, true
}

func (a *API) write(w http.ResponseWriter, r *http.Request, code int, body any) {
	buf, err := json.Marshal(body)
	if err != nil {
		level.Error(a.logger).Log("msg", "can not marshal the response", "path", r.URL.Path, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if n, err := w.Write(buf); err != nil {
		level.Error(a.logger).Log("msg", "error writing response", "bytesWritten", n, "err", err)
	}
}

// httpStatus maps an engine status code to an HTTP status.
func httpStatus(status int) int {
	switch status {
	case query.StatusOK:
		return http.StatusOK
	case query.StatusBadMessage, query.StatusInvalidArgument:
		return http.StatusBadRequest
	case query.StatusIO:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
