// Package protocol parses configuration requests into commands and encodes
// the JSON snapshots served back.
package protocol

import (
	"strconv"
	"strings"

	"sensornode-go/types"
)

// MaxBodyLen caps the mutation body: a page worth of node fields plus one
// row per sensor.
const MaxBodyLen = 1024 + 20 + 20 + types.MaxSensors*40

// Paths.
const (
	PathRoot    = "/"
	PathConfig  = "/config"
	PathSensors = "/sensors"
	PathLogs    = "/logs"
)

// Request is the transport-neutral shape of one HTTP request.
type Request struct {
	Method string
	Path   string
	Query  string // raw query, without '?'
	Body   string
}

type Op uint8

const (
	OpNotFound Op = iota
	OpPage
	OpConfig
	OpSensors
	OpLogs
	OpMutate
)

func (o Op) String() string {
	switch o {
	case OpPage:
		return "page"
	case OpConfig:
		return "config"
	case OpSensors:
		return "sensors"
	case OpLogs:
		return "logs"
	case OpMutate:
		return "mutate"
	default:
		return "not_found"
	}
}

// Command is a parsed request.
type Command struct {
	Op    Op
	Since uint32 // OpLogs: first sequence wanted
	Form  Form   // OpMutate
}

// Parse maps a request onto a command. It never fails: anything it does not
// recognise is OpNotFound.
func Parse(r Request) Command {
	path, query := r.Path, r.Query
	if p, q, ok := strings.Cut(path, "?"); ok {
		path = p
		if query == "" {
			query = q
		}
	}

	switch {
	case strings.EqualFold(r.Method, "GET"):
		switch path {
		case PathRoot:
			return Command{Op: OpPage}
		case PathConfig:
			return Command{Op: OpConfig}
		case PathSensors:
			return Command{Op: OpSensors}
		case PathLogs:
			return Command{Op: OpLogs, Since: sinceParam(query)}
		}
	case strings.EqualFold(r.Method, "POST") && path == PathRoot:
		body := r.Body
		if len(body) > MaxBodyLen {
			body = body[:MaxBodyLen]
		}
		return Command{Op: OpMutate, Form: DecodeForm(body)}
	}
	return Command{Op: OpNotFound}
}

// sinceParam reads "id=N"; anything unparsable means from the start.
func sinceParam(query string) uint32 {
	v, ok := DecodeForm(query).Get("id")
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
