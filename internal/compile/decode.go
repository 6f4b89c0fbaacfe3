package compile

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// All field defaulting for bridge payloads happens here: booleans default to
// false, lists to empty, text fields to "".

// decodeEditorState reads isCompiling/isUpdating from a get_state payload.
func decodeEditorState(data json.RawMessage) EditorState {
	fields := decodeObject(data)
	return EditorState{
		IsCompiling: decodeBool(fields["isCompiling"]),
		IsUpdating:  decodeBool(fields["isUpdating"]),
	}
}

// decodeConsoleEntries reads the entry list from a read_console payload.
// The payload is normally an array; an object wrapping it under "entries"
// is accepted too. Elements that are not objects are skipped.
func decodeConsoleEntries(data json.RawMessage) []ConsoleEntry {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		fields := decodeObject(data)
		if err := json.Unmarshal(fields["entries"], &items); err != nil {
			return nil
		}
	}

	entries := make([]ConsoleEntry, 0, len(items))
	for _, item := range items {
		fields := decodeObject(item)
		if fields == nil {
			continue
		}
		entries = append(entries, ConsoleEntry{
			Kind:       EntryKind(decodeText(fields["type"])),
			Message:    decodeText(fields["message"]),
			File:       decodeText(fields["file"]),
			Line:       decodeText(fields["line"]),
			StackTrace: decodeText(fields["stackTrace"]),
		})
	}
	return entries
}

// decodeData turns an opaque payload into a generic value for pass-through.
func decodeData(data json.RawMessage) interface{} {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return v
}

func decodeObject(data json.RawMessage) map[string]json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return fields
}

func decodeBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// decodeText accepts strings, numbers and booleans; anything else is "".
// Line numbers arrive as either text or integers depending on the bridge.
func decodeText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
