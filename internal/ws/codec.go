package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/fxamacker/cbor/v2"

	"github.com/DoyleJ11/signal-dashboard/internal/types"
)

var ErrUnknownEncoding = errors.New("unknown encoding")

// frameEncMode encodes frames for binary subscribers. Struct fields reuse
// their json names.
var frameEncMode cbor.EncMode

var frameDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	frameEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create frame CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}
	frameDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create frame CBOR decoder mode: %v", err))
	}
}

type codec struct {
	name    string
	msgType websocket.MessageType
}

var (
	jsonCodec = codec{name: "json", msgType: websocket.MessageText}
	cborCodec = codec{name: "cbor", msgType: websocket.MessageBinary}
)

func codecFor(name string) (codec, error) {
	switch name {
	case "", "json":
		return jsonCodec, nil
	case "cbor":
		return cborCodec, nil
	default:
		return codec{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

func (c codec) encode(msg types.ServerMessage) ([]byte, error) {
	if c.name == "cbor" {
		return frameEncMode.Marshal(msg)
	}
	return json.Marshal(msg)
}

// decode reads a client message in whichever format the frame arrived in.
func decode(typ websocket.MessageType, data []byte) (types.ClientMessage, error) {
	var cm types.ClientMessage
	var err error
	if typ == websocket.MessageBinary {
		err = frameDecMode.Unmarshal(data, &cm)
	} else {
		err = json.Unmarshal(data, &cm)
	}
	return cm, err
}
