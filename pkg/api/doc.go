// Package api is the client for the device API.
//
// It covers the three calls the fetcher needs: the account's privileges
// (GET /self), the devices of one site (GET /sites/{id}/devices) and raw
// image downloads from absolute URLs. Every request carries the account
// token in an "Authorization: Token ..." header.
//
// JSON bodies are read tolerantly with gjson: absent and null fields become
// nil pointers on the returned records instead of decode failures.
//
// The client does not retry. Non-success responses come back as
// *errors.Error values of kind http, with the URL and status code attached.
package api
