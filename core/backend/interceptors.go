package backend

import (
	"context"
	"fmt"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/logger"
)

// Request describes the request an interceptor is called for
type Request struct {
	// Resource for which this request is made
	Resource string
	// Operation for this request
	Operation core.Operation
	// Selectors are the key values from the request URL, empty for collection requests
	Selectors map[string]string
	// Parameters are the query parameters from the request URL
	Parameters map[string]string
}

// Interceptor sees the data of a request. For create, update and replace
// it is called with the request body before the body is applied to the
// record. For read and list it is called with each item representation
// before it is returned. For delete data is the current representation
// and the result is ignored.
//
// A returned non-nil map replaces data. A returned error aborts the request;
// return a *rest.OperationalError or a *rest.Error to choose the status,
// anything else is a server error.
type Interceptor func(ctx context.Context, request Request, data map[string]any) (map[string]any, error)

// HandleResourceRequest installs an interceptor for a resource and a set of operations.
// If no operations are specified, the interceptor will be installed for the Read operation only.
func (b *Backend) HandleResourceRequest(resource string, interceptor Interceptor, operations ...core.Operation) error {
	if _, ok := b.resources[resource]; !ok {
		return fmt.Errorf("handle resource request for %s: no such resource", resource)
	}
	if len(operations) == 0 {
		operations = []core.Operation{core.OperationRead}
	}
	for _, operation := range operations {
		key := requestKey(resource, operation)
		if _, ok := b.interceptors[key]; ok {
			return fmt.Errorf("resource request handler for %s already installed", key)
		}
		logger.FromContext(nil).Debugf("install resource request handler for %s", key)
		b.interceptors[key] = interceptor
	}
	return nil
}

func requestKey(resource string, operation core.Operation) string {
	return resource + "(" + string(operation) + ")"
}

// intercept returns data unchanged if no interceptor is installed
func (b *Backend) intercept(ctx context.Context, request Request, data map[string]any) (map[string]any, error) {
	interceptor, ok := b.interceptors[requestKey(request.Resource, request.Operation)]
	if !ok {
		return data, nil
	}
	result, err := interceptor(ctx, request, data)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return data, nil
	}
	return result, nil
}
