/*
Package backend implements the configurable backend

A backend serves documents of a persistence repository through an auto-generated RESTful-API.

Configuration

The configuration is done entirely via JSON. It consists of resources with their fields,
default values and validation rules.

Example:
  {
	"resources": [
	  {
		"resource": "user",
		"fields": [
		  {"name": "name"},
		  {"name": "email"},
		  {"name": "role", "default": "member"},
		  {"name": "password"}
		],
		"rules": {
		  "name": "required|strlen:1,64",
		  "email": "email",
		  "role": "type:string"
		},
		"secret_field": "password"
	  }
	]
  }

This configuration creates the following REST routes:
	GET /users
	POST /users
	GET /users/{id}
	PUT /users/{id}
	PATCH /users/{id}
	DELETE /users/{id}

The name of the key variable is the key field of the repository, "_id" for MongoDB.

Collections

GET on a collection returns a HAL envelope with the page in "_embedded.<collection>", the
links self, first, previous, next and last and the counts total_items, returned_items,
limit and offset. The query parameters are

	limit    page size, default 25
	offset   index of the first item, default 0
	sort     field to sort by, default created_at
	sort_dir asc or desc, default desc

POST creates a new item from the request body and responds 201 with a Location header.

Items

GET returns the item. The parameter "fields" restricts the returned fields, the parameter
"zoom" adds the named embeds (see HandleEmbed). PATCH applies the fields present in the body
and validates only those. PUT replaces the item: fields missing in the body are reset to their
defaults. DELETE responds 204.

The secret field is writable but never returned. The discriminator field and the timestamps
created_at and updated_at are maintained by the backend.

Errors

Every failure is a JSON object with status, code, message, description and property. Validation
failures respond 422 with the failed fields and their messages as property.

Request bodies are JSON, XML is accepted as well and normalized to the same form.

Interceptors

Custom logic hooks into requests with HandleResourceRequest. An interceptor may transform or
reject the body of create, update and replace requests and the representations of read and
list requests. It rejects with a *rest.OperationalError, whose kind selects the status.

Notifications

With a core.Notifier every successful create, update, replace and delete is published with the
representation of the affected item.
*/
package backend
