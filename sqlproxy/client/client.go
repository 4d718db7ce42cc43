// Package client is the guest side of the bridge. Each handle wraps the
// opaque ID the host handed out and turns method calls into bridge requests.
//
// CallHost must be installed before any call is made. Inside a WASI module
// the wasi/guest package does that; tests and in-process embedders can point
// it straight at a host.SQLHost.
package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// CallHost is a function provided by the host environment to handle bridge
// requests.
var CallHost func(requestPayload []byte) (responsePayload []byte, err error)

// SetHostHandler sets the function used to reach the host. It must be called
// before any database operation.
func SetHostHandler(handler func(requestPayload []byte) (responsePayload []byte, err error)) {
	CallHost = handler
}

var errNoHost = errors.New("libsql: CallHost function is not set")

// call sends req and decodes the reply. Errors reported by the host come back
// as *types.Error so that errors.Is works against the kind sentinels.
func call(req types.Request) (types.Response, error) {
	if CallHost == nil {
		return types.Response{}, errNoHost
	}
	reqPayload, err := json.Marshal(req)
	if err != nil {
		return types.Response{}, fmt.Errorf("libsql: failed to marshal %s request: %w", req.Command, err)
	}
	respPayload, err := CallHost(reqPayload)
	if err != nil {
		return types.Response{}, fmt.Errorf("libsql: CallHost for %s failed: %w", req.Command, err)
	}
	var resp types.Response
	if err := json.Unmarshal(respPayload, &resp); err != nil {
		return types.Response{}, fmt.Errorf("libsql: failed to unmarshal %s response: %w", req.Command, err)
	}
	if err := resp.Err(); err != nil {
		return types.Response{}, err
	}
	return resp, nil
}

func queryResult(resp types.Response, err error) (types.QueryResult, error) {
	if err != nil {
		return types.QueryResult{}, err
	}
	if resp.Query == nil {
		return types.QueryResult{}, errors.New("libsql: host returned no query result")
	}
	return *resp.Query, nil
}

func executeResult(resp types.Response, err error) (types.ExecuteResult, error) {
	if err != nil {
		return types.ExecuteResult{}, err
	}
	if resp.Execute == nil {
		return types.ExecuteResult{}, errors.New("libsql: host returned no execute result")
	}
	return *resp.Execute, nil
}
