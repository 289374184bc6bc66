package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// json is the codec used for blobs, exports and api payloads.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errInvalidJSON = errors.New("payload is not valid json")

type ContextKey string

const (
	BookIDPrefix            string     = "b"
	RequestIDPrefix         string     = "r"
	RequestIDContextKey     ContextKey = "request.id"
	RequestNumberContextKey ContextKey = "request.number"

	// maxRequestBodySize bounds add, edit and import payloads.
	maxRequestBodySize int64 = 1 << 20
)

// GetValueFromContext returns the value of a given key in the context
// if this key is not available, it returns an empty string.
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val := ctx.Value(contextKey); val != nil {
		return val.(string)
	}
	return ""
}

// GetRequestNumberFromContext returns the request number set in
// the context. if not previously set then it returns 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val := ctx.Value(RequestNumberContextKey); val != nil {
		return val.(uint64)
	}
	return 0
}

// DecodeBookRecordRequestBody reads the loosely typed book record of an add or edit request.
func DecodeBookRecordRequestBody(r *http.Request) (BookRecord, error) {
	if r.Body == nil {
		return nil, errors.New("invalid book request body")
	}
	rec := BookRecord{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReadRequestBody returns the raw request payload, used by the import endpoint.
func ReadRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errors.New("invalid import request body")
	}
	return io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
}

// GetRequestSourceIP helps find the source IP of the caller.
func GetRequestSourceIP(r *http.Request) string {
	// Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip
	}

	// Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	for _, ip := range strings.Split(ips, ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	if net.ParseIP(ip) != nil {
		return ip
	}
	return ""
}

// IsAppRunningInDocker checks the existence of the .dockerenv
// file at the root directory and returns a boolean result.
func IsAppRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
