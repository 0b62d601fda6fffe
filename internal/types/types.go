package types

import "github.com/DoyleJ11/signal-dashboard/internal/feed"

type ClientMessage struct {
	Type string `json:"type" cbor:"type"` // "GetFrame"
}

type ServerMessage struct {
	Type    string      `json:"type" cbor:"type"` // "DisplayFrame" | "Error"
	Version int         `json:"version,omitempty" cbor:"version,omitempty"`
	Frame   *feed.Frame `json:"frame,omitempty" cbor:"frame,omitempty"`
	Error   string      `json:"error,omitempty" cbor:"error,omitempty"`
}

func FrameMessage(f feed.Frame) ServerMessage {
	return ServerMessage{Type: "DisplayFrame", Version: f.Version, Frame: &f}
}

func ErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: "Error", Error: msg}
}
