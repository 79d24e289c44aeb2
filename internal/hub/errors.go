package hub

import "errors"

var (
	// ErrBufferFull is returned when the send buffer is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrNotRegistered is returned for a connection that has left the hub.
	ErrNotRegistered = errors.New("connection not registered")
)
