package gateway

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrRPC matches every error returned by the gateway.
var ErrRPC = errors.New("rpc error")

// RPCError is a transport or node failure for a single request.
// Message holds the node's error text verbatim.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    interface{}
	Err     error
}

func (e *RPCError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// Unwrap returns the underlying transport error.
func (e *RPCError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRPC.
func (e *RPCError) Is(target error) bool {
	return target == ErrRPC
}

// wrapError converts a client error into an *RPCError, keeping node codes and data.
func wrapError(method string, err error) error {
	if err == nil {
		return nil
	}

	rpcErr := &RPCError{
		Method:  method,
		Message: err.Error(),
		Err:     err,
	}

	var coded rpc.Error
	if errors.As(err, &coded) {
		rpcErr.Code = coded.ErrorCode()
	}

	var withData rpc.DataError
	if errors.As(err, &withData) {
		rpcErr.Data = withData.ErrorData()
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && rpcErr.Code == 0 {
		rpcErr.Code = httpErr.StatusCode
	}

	return rpcErr
}

// Rejected reports whether err carries a JSON-RPC error answered by the node,
// as opposed to a transport failure where the request outcome is unknown.
func Rejected(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	var coded rpc.Error
	return errors.As(rpcErr.Err, &coded)
}
