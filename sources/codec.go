package sources

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tarungka/rewind/stream"
	"github.com/tidwall/gjson"
)

var (
	// ErrUnknownCommand is returned for a control payload whose command is
	// not ROLLBACK.
	ErrUnknownCommand = errors.New("unknown control command")

	// ErrInvalidPayload is returned for a payload that cannot be decoded.
	ErrInvalidPayload = errors.New("invalid payload")
)

// ParseData decodes a data record value. The value is a decimal integer,
// either bare ASCII ("42") or a JSON number.
func ParseData(value []byte) (stream.DataMessage, error) {
	v := bytes.TrimSpace(value)
	if len(v) == 0 {
		return stream.DataMessage{}, fmt.Errorf("%w: empty data value", ErrInvalidPayload)
	}
	if r := gjson.ParseBytes(v); r.Type == gjson.Number {
		v = []byte(r.Raw)
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return stream.DataMessage{}, fmt.Errorf("%w: %q is not a sequence number", ErrInvalidPayload, value)
	}
	return stream.DataMessage{Seq: stream.SequenceNumber(n)}, nil
}

// ParseControl decodes a control record value of the form
// {"command":"ROLLBACK","target":5}. A null or missing target rolls back to
// the start.
func ParseControl(value []byte) (stream.ControlMessage, error) {
	if !gjson.ValidBytes(value) {
		return stream.ControlMessage{}, fmt.Errorf("%w: control value is not JSON", ErrInvalidPayload)
	}
	doc := gjson.ParseBytes(value)
	if !doc.IsObject() {
		return stream.ControlMessage{}, fmt.Errorf("%w: control value is not an object", ErrInvalidPayload)
	}

	cmd := doc.Get("command")
	if cmd.Type != gjson.String {
		return stream.ControlMessage{}, fmt.Errorf("%w: missing command", ErrInvalidPayload)
	}
	if tag := stream.CommandTag(strings.ToUpper(cmd.Str)); tag != stream.CommandRollback {
		return stream.ControlMessage{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Str)
	}

	target := doc.Get("target")
	switch target.Type {
	case gjson.Null:
		return stream.NewRollbackMessage(stream.RollbackToStart()), nil
	case gjson.Number:
		n, err := strconv.ParseUint(target.Raw, 10, 64)
		if err != nil {
			return stream.ControlMessage{}, fmt.Errorf("%w: target %s is not a sequence number", ErrInvalidPayload, target.Raw)
		}
		return stream.NewRollbackMessage(stream.RollbackTo(stream.SequenceNumber(n))), nil
	default:
		return stream.ControlMessage{}, fmt.Errorf("%w: target must be a number or null", ErrInvalidPayload)
	}
}
