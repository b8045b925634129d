// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs; payload
// types are aliased from the api package so IPC and HTTP consumers see the
// same wire shapes. The server embeds the daemon while the client keeps one
// wrapper method per RPC so CLI commands stay typed.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
