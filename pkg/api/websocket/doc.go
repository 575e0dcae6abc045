// Package websocket provides real-time run event streaming via WebSocket.
//
// Clients connect to /api/v1/runs/:id/ws and receive every run and task
// event of that run as JSON until the run finishes.
package websocket
