package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestMiddlewaresStacks ensures we get both public and ops middlewares
// stacks with exact number of elements in those stacks.
func TestMiddlewaresStacks(t *testing.T) {
	api := NewAPIHandler(zap.NewNop(), nil, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc"), nil)
	pub, ops := api.MiddlewaresStacks()
	assert.Equal(t, 6, len(*pub))
	assert.Equal(t, 4, len(*ops))
}

// TestChain ensures each middleware in the stack is called as well the handler.
func TestChain(t *testing.T) {
	var ca, cb, cc, ch bool
	queue := make(chan int, 4)

	middlewareA := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 1
			ca = true
			next(w, r, ps)
		}
	}
	middlewareB := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 2
			cb = true
			next(w, r, ps)
		}
	}
	middlewareC := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 3
			cc = true
			next(w, r, ps)
		}
	}
	middlewares := Middlewares{
		middlewareA,
		middlewareB,
		middlewareC,
	}

	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		queue <- 4
		ch = true
	}

	chained := (&middlewares).Chain(handler)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	chained(w, req, nil)

	t.Run("check calling", func(t *testing.T) {
		assert.Equal(t, true, ca)
		assert.Equal(t, true, cb)
		assert.Equal(t, true, cc)
		assert.Equal(t, true, ch)
	})

	t.Run("check ordering", func(t *testing.T) {
		assert.Equal(t, 1, <-queue)
		assert.Equal(t, 2, <-queue)
		assert.Equal(t, 3, <-queue)
		assert.Equal(t, 4, <-queue)
	})
}

// TestRequestsCounterMiddleware ensures the request counter increment.
func TestRequestsCounterMiddleware(t *testing.T) {
	api := NewAPIHandler(zap.NewNop(), nil, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc"), nil)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	var num uint64
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		num = GetRequestNumberFromContext(req.Context())
	}
	wrapped := api.RequestsCounterMiddleware(handler)
	wrapped(w, req, nil)
	assert.Equal(t, uint64(1), num)
	assert.Equal(t, uint64(1), api.stats.called)
}

// TestRequestIDMiddleware ensures the request id lands in context and headers.
func TestRequestIDMiddleware(t *testing.T) {
	api := NewAPIHandler(zap.NewNop(), nil, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc"), nil)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	var requestID string
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		requestID = GetValueFromContext(req.Context(), RequestIDContextKey)
	}
	api.RequestIDMiddleware(handler)(w, req, nil)
	assert.Equal(t, "r:abc", requestID)
	assert.Equal(t, "r:abc", w.Header().Get("X-Request-Id"))
}

// TestPanicRecoveryMiddleware ensures a panicking handler ends with a logged 500.
func TestPanicRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	api := NewAPIHandler(zap.New(core), nil, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc"), nil)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		panic("boom")
	}
	api.PanicRecoveryMiddleware(handler)(w, req, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"requestid":"", "status":500, "message":"failed to process the request.", "data":{}}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic occurred").Len())
}

// TestCoreMiddleware ensures each request is logged before and after processing.
func TestCoreMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	api := NewAPIHandler(zap.New(core), nil, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc"), nil)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	api.CoreMiddleware(func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {})(w, req, nil)

	entries := logs.FilterMessage("request").All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "/v1/books", entries[0].ContextMap()["request.path"])
}

// TestStatsMiddleware ensures served status codes are counted.
func TestStatsMiddleware(t *testing.T) {
	api := NewAPIHandler(zap.NewNop(), nil, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc"), nil)
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	}
	for i := 0; i < 3; i++ {
		api.StatsMiddleware(handler)(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), nil)
	}
	assert.Equal(t, uint64(3), api.stats.status[http.StatusTeapot])
}

func TestCORSMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	CORSMiddleware(func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {})(w, httptest.NewRequest("OPTIONS", "/v1/books", nil), nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}
