// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice if one request handler needs to call other handlers to fulfill
its task. It is also perfectly suited for unit tests.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/access"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	ctx        context.Context

	clientKey string
	secretKey string
	now       func() time.Time

	username string
	password string

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            url,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which sends token as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithSignature returns a new client which signs every request with the
// secret key of clientKey
func (c Client) WithSignature(clientKey, secretKey string) Client {
	c.clientKey = clientKey
	c.secretKey = secretKey
	return c
}

// WithSignatureTime returns a new client which signs with the time returned by now
func (c Client) WithSignatureTime(now func() time.Time) Client {
	c.now = now
	return c
}

// WithBasicAuth returns a new client which sends basic credentials
func (c Client) WithBasicAuth(username, password string) Client {
	c.username = username
	c.password = password
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the base context of all requests
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Response is the raw outcome of a request
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into result. result can also be a raw *[]byte.
func (r Response) Decode(result interface{}) error {
	if result == nil || len(r.Body) == 0 {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = r.Body
		return nil
	}
	return json.Unmarshal(r.Body, result)
}

// Do sends a request with a raw body and returns the raw response
func (c Client) Do(method, path, contentType string, body []byte) (Response, error) {
	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if c.secretKey != "" {
		at := time.Now()
		if c.now != nil {
			at = c.now()
		}
		fingerprint := access.Fingerprint(method, body, contentType, r.URL.Path)
		r.Header.Set(access.HeaderHMAC, access.Sign(fingerprint, c.clientKey, c.secretKey, at))
	}
	if c.username != "" {
		r.SetBasicAuth(c.username, c.password)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return Response{Status: res.StatusCode, Header: res.Header, Body: rec.Body.Bytes()}, nil
	}
	res, err := c.httpClient.Do(r)
	if err != nil {
		return Response{Status: http.StatusInternalServerError}, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	return Response{Status: res.StatusCode, Header: res.Header, Body: resBody}, err
}

// raw sends body as JSON and decodes the response into result. Any status
// not listed in expected is flagged as an error, the body is decoded anyway.
func (c Client) raw(method, path string, body interface{}, result interface{}, expected ...int) (int, http.Header, error) {
	var j []byte
	contentType := ""
	if body != nil {
		var ok bool
		j, ok = body.([]byte)
		if !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return http.StatusBadRequest, nil, fmt.Errorf("%s to %s: %w", method, path, err)
			}
		}
		contentType = "application/json"
	}
	res, err := c.Do(method, path, contentType, j)
	if err != nil {
		return res.Status, res.Header, err
	}
	decodeErr := res.Decode(result)
	for _, status := range expected {
		if res.Status == status {
			return res.Status, res.Header, decodeErr
		}
	}
	return res.Status, res.Header, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
		res.Status, expected, strings.TrimSpace(string(res.Body)))
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.raw(http.MethodGet, path, nil, result, http.StatusOK, http.StatusNoContent)
	return status, err
}

// RawPost posts a resource to path. Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code and the location header.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, string, error) {
	status, header, err := c.raw(http.MethodPost, path, body, result, http.StatusCreated)
	location := ""
	if header != nil {
		location = header.Get("Location")
	}
	return status, location, err
}

// RawPut puts a resource to path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.raw(http.MethodPut, path, body, result, http.StatusOK)
	return status, err
}

// RawPatch puts a patch to path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPatch(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.raw(http.MethodPatch, path, body, result, http.StatusOK)
	return status, err
}

// RawDelete deletes the resource at path. Expects http.StatusNoContent as response,
// otherwise it will flag an error. Returns the actual http status code.
func (c Client) RawDelete(path string) (int, error) {
	status, _, err := c.raw(http.MethodDelete, path, nil, nil, http.StatusNoContent)
	return status, err
}

// Collection represents a collection of particular resource
type Collection struct {
	client     *Client
	resource   string
	parameters []string
}

// Collection returns a new collection client for the singular resource name
func (c Client) Collection(resource string) Collection {
	return Collection{
		client:   &c,
		resource: resource,
	}
}

// WithParameter returns a new collection client with a URL parameter added.
func (r Collection) WithParameter(key string, value string) Collection {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	return Collection{
		client:   r.client,
		resource: r.resource,
		// we want a true copy to avoid side effects
		parameters: append(append([]string{}, r.parameters...), parameter),
	}
}

// WithPage returns a new collection client requesting limit items from offset
func (r Collection) WithPage(limit, offset int) Collection {
	return r.WithParameter("limit", fmt.Sprint(limit)).WithParameter("offset", fmt.Sprint(offset))
}

func (r Collection) path() string {
	return "/" + core.Plural(r.resource)
}

// CollectionPath returns the created path for the collection plus optional query strings
func (r Collection) CollectionPath() string {
	p := r.path()
	if len(r.parameters) > 0 {
		p += "?" + strings.Join(r.parameters, "&")
	}
	return p
}

// Create always creates a new item.
//
// The operation corresponds to a POST request.
//
// Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code and the location header.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (r Collection) Create(body interface{}, result interface{}) (int, string, error) {
	return r.client.RawPost(r.CollectionPath(), body, result)
}

// List gets one page of the collection.
//
// The operation corresponds to a GET request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result can be map[string]interface{} or a raw *[]byte.
func (r Collection) List(result interface{}) (int, error) {
	return r.client.RawGet(r.CollectionPath(), result)
}

// Item represents a single item in a collection
type Item struct {
	col        Collection
	keys       []string
	parameters []string
}

// Item gets an item from a collection. keys are the path segments of the item route.
func (r Collection) Item(keys ...string) Item {
	return Item{col: r, keys: keys}
}

// WithParameter returns a new item client with a URL parameter added.
func (r Item) WithParameter(key string, value string) Item {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	return Item{
		col:  r.col,
		keys: r.keys,
		// we want a true copy to avoid side effects
		parameters: append(append([]string{}, r.parameters...), parameter),
	}
}

// Path returns the created path for this item
func (r Item) Path() string {
	segments := make([]string, len(r.keys))
	for i, key := range r.keys {
		segments[i] = url.PathEscape(key)
	}
	p := path.Join(append([]string{r.col.path()}, segments...)...)
	if len(r.parameters) > 0 {
		p += "?" + strings.Join(r.parameters, "&")
	}
	return p
}

// Read reads an item from a collection
//
// The operation corresponds to a GET request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// Optional fields restrict the returned fields.
//
// result can also be map[string]interface{} or a raw *[]byte.
func (r Item) Read(result interface{}, fields ...string) (int, error) {
	if len(fields) > 0 {
		return r.WithParameter("fields", strings.Join(fields, ",")).Read(result)
	}
	return r.col.client.RawGet(r.Path(), result)
}

// Patch updates selected fields of an item
//
// Expects http.StatusOK as response, otherwise it will flag an error.
// Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (r Item) Patch(body interface{}, result interface{}) (int, error) {
	return r.col.client.RawPatch(r.Path(), body, result)
}

// Replace replaces an item. Fields missing in body are reset to their defaults.
//
// The operation corresponds to a PUT request.
//
// Expects http.StatusOK as response, otherwise it will flag an error.
// Returns the actual http status code.
func (r Item) Replace(body interface{}, result interface{}) (int, error) {
	return r.col.client.RawPut(r.Path(), body, result)
}

// Delete deletes an item from a collection
//
// The operation corresponds to a DELETE request.
//
// Expects http.StatusNoContent as response, otherwise it will
// flag an error.
//
// Returns the actual http status code.
func (r Item) Delete() (int, error) {
	return r.col.client.RawDelete(r.Path())
}
