// Package types holds the websocket wire messages.
//
// Client -> Server (/ws?intersection=<id>[&encoding=cbor])
//
//	GetFrame:
//	  type: "GetFrame"
//
// Server -> Client
//
//	DisplayFrame:
//	  type: "DisplayFrame"
//	  version: number
//	  frame: {
//	    intersection: string
//	    version: number
//	    flash: boolean
//	    green_lane: string
//	    phase: "green" | "yellow" | "red" | "unknown"
//	    timer: number
//	    lanes: LaneDisplay[]
//	    updated_at: string // RFC 3339
//	  }
//
//	LaneDisplay:
//	  lane: string
//	  color: "green" | "yellow" | "red" | "grey"
//	  vehicle_count: number
//	  emergency_active: boolean
//	  label: { lane, count, emergency, text, emergency_text }
//
//	Error:
//	  type: "Error"
//	  error: "bad message" | "unknown type"
//
// The controller's own response shapes are documented on controller.Decode.
package types
