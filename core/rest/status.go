package rest

import "net/http"

type status struct {
	message     string
	description string
}

// statuses holds the default message and description of every status this
// package renders. Codes outside the table are mapped to 500.
var statuses = map[int]status{
	http.StatusBadRequest:                   {"Bad Request", "The request cannot be fulfilled due to bad syntax."},
	http.StatusUnauthorized:                 {"Unauthorized", "Authentication is required and has failed or has not yet been provided."},
	http.StatusPaymentRequired:              {"Payment Required", "Payment is required before the request can be processed."},
	http.StatusForbidden:                    {"Forbidden", "The request was a valid request, but the server is refusing to respond to it."},
	http.StatusNotFound:                     {"Not Found", "The requested resource could not be found."},
	http.StatusMethodNotAllowed:             {"Method Not Allowed", "A request was made of a resource using a request method not supported by that resource."},
	http.StatusNotAcceptable:                {"Not Acceptable", "The requested resource is only capable of generating content not acceptable according to the Accept headers sent in the request."},
	http.StatusRequestTimeout:               {"Request Timeout", "The server timed out waiting for the request."},
	http.StatusConflict:                     {"Conflict", "The request could not be processed because of conflict in the request."},
	http.StatusGone:                         {"Gone", "The resource requested is no longer available and will not be available again."},
	http.StatusLengthRequired:               {"Length Required", "The request did not specify the length of its content, which is required by the requested resource."},
	http.StatusPreconditionFailed:           {"Precondition Failed", "The server does not meet one of the preconditions that the requester put on the request."},
	http.StatusRequestEntityTooLarge:        {"Request Entity Too Large", "The request is larger than the server is willing or able to process."},
	http.StatusRequestURITooLong:            {"Request-URI Too Long", "The URI provided was too long for the server to process."},
	http.StatusUnsupportedMediaType:         {"Unsupported Media Type", "The request entity has a media type which the server or resource does not support."},
	http.StatusRequestedRangeNotSatisfiable: {"Requested Range Not Satisfiable", "The client has asked for a portion of the resource, but the server cannot supply that portion."},
	http.StatusUnprocessableEntity:          {"Unprocessable Entity", "The request was well-formed but was unable to be followed due to semantic errors."},
	http.StatusLocked:                       {"Locked", "The resource that is being accessed is locked."},
	http.StatusFailedDependency:             {"Failed Dependency", "The request failed due to failure of a previous request."},
	http.StatusInternalServerError:          {"Internal Server Error", "An unexpected condition was encountered and no more specific message is suitable."},
	http.StatusNotImplemented:               {"Not Implemented", "The server either does not recognize the request method, or it lacks the ability to fulfill the request."},
	http.StatusBadGateway:                   {"Bad Gateway", "The server was acting as a gateway or proxy and received an invalid response from the upstream server."},
	http.StatusServiceUnavailable:           {"Service Unavailable", "The server is currently unavailable."},
	http.StatusGatewayTimeout:               {"Gateway Timeout", "The server was acting as a gateway or proxy and did not receive a timely response from the upstream server."},
	http.StatusHTTPVersionNotSupported:      {"HTTP Version Not Supported", "The server does not support the HTTP protocol version used in the request."},
}

// Known returns true if status is part of the status table
func Known(code int) bool {
	_, ok := statuses[code]
	return ok
}
