// Package sidecar is the HTTP client for the aide sidecar, the backend that
// indexes the workspace and runs the agent.
//
// Request/response calls (search, symbol lookup, health, file-change
// notifications) exchange JSON. Agent chat responses arrive as a
// server-sent-event stream that [Stream.Next] decodes into [StreamEvent]s.
//
// Every request is counted in Prometheus metrics under the aide_sidecar
// prefix. Non-2xx responses surface as *errors.SidecarError, which is
// retryable for 429 and 5xx statuses.
package sidecar
