package tlobject

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TLInt64 is an int64 that marshals as a JSON string and unmarshals from
// either a JSON string or a JSON number (spec §4.2: "int64 fields always
// round-trip via string to avoid precision loss"; §6: "Strings containing
// an integer that overflows 32 bits are accepted for int64 fields; integer
// JSON values are also accepted for string-typed int64s").
type TLInt64 int64

func (v TLInt64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(v), 10))
}

func (v *TLInt64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int64 string %q: %w", s, err)
		}
		*v = TLInt64(n)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = TLInt64(n)
	return nil
}

// extraField is the type a JSON "@extra" value round-trips through: any
// JSON value, stored and re-emitted byte-for-byte (spec §4.2).
type extraField = json.RawMessage

// EncodeNested encodes obj as a plain object JSON with its own "@type"
// spliced in — no "@extra"/"@client_id" — for use as a nested field inside
// a larger response (e.g. updateAuthorizationState.authorization_state).
func EncodeNested(obj Object) (json.RawMessage, error) {
	return splice(obj, nil, 0)
}

// EncodeResponse builds the JSON wire form of a response object, splicing
// in "@type", and optionally "@extra" (echoed verbatim from the
// originating request) and "@client_id" (only when nonzero), exactly as
// ClientJson.cpp does it: marshal the object's own fields, drop the
// trailing '}', append the extra keys, and close the brace again — rather
// than unmarshal-then-remarshal, which would risk reordering or
// renormalizing "@extra" and violate its "echoed verbatim" contract
// (spec §4.2, §4 SUPPLEMENTED FEATURES).
func EncodeResponse(obj Object, extra extraField, clientID int32) ([]byte, error) {
	return splice(obj, extra, clientID)
}

func splice(obj Object, extra extraField, clientID int32) ([]byte, error) {
	body, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", obj.TypeName(), err)
	}

	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' || body[len(body)-1] != '}' {
		return nil, fmt.Errorf("object %s did not marshal to a JSON object", obj.TypeName())
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	typeJSON, err := json.Marshal(obj.TypeName())
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"@type":`)
	buf.Write(typeJSON)

	inner := bytes.TrimSpace(body[1 : len(body)-1])
	if len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}

	if len(extra) > 0 {
		buf.WriteString(`,"@extra":`)
		buf.Write(extra)
	}

	if clientID != 0 {
		buf.WriteString(`,"@client_id":`)
		buf.WriteString(strconv.FormatInt(int64(clientID), 10))
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// DecodeFunction parses a JSON request object per spec §4.2/§6: it reads
// "@type" (string name, preferred, or numeric constructor id), extracts
// (not merely peeks at) "@extra" so it is never treated as an unknown
// field of the target constructor, looks the constructor up in reg, and
// unmarshals the remaining fields into a fresh instance. It returns the
// decoded Function, the raw "@extra" value (nil if absent), and a plain
// error for any caller mistake; callers report it with code 400.
func DecodeFunction(reg *Registry, raw []byte) (Function, extraField, error) {
	obj, extra, err := decodeObject(reg, raw)
	if err != nil {
		return nil, nil, err
	}

	fn, ok := obj.(Function)
	if !ok {
		return nil, extra, fmt.Errorf("%s is not a request", obj.TypeName())
	}

	return fn, extra, nil
}

func decodeObject(reg *Registry, raw []byte) (Object, extraField, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON request: %w", err)
	}

	typeRaw, ok := fields["@type"]
	if !ok {
		return nil, nil, fmt.Errorf("missing @type field")
	}
	delete(fields, "@type")

	var extra extraField
	if e, ok := fields["@extra"]; ok {
		extra = e
		delete(fields, "@extra")
	}
	delete(fields, "@client_id")

	name, err := resolveTypeName(reg, typeRaw)
	if err != nil {
		return nil, extra, err
	}

	obj, ok := reg.ByName(name)
	if !ok {
		return nil, extra, fmt.Errorf("unknown constructor id 0x%s", name)
	}

	remaining, err := json.Marshal(fields)
	if err != nil {
		return nil, extra, err
	}
	if err := json.Unmarshal(remaining, obj); err != nil {
		return nil, extra, fmt.Errorf("decode %s: %w", name, err)
	}

	return obj, extra, nil
}

// resolveTypeName accepts either a string constructor name or a numeric
// constructor id for "@type" (spec §6: "either the TL constructor name
// (preferred) or its 32-bit numeric id").
func resolveTypeName(reg *Registry, raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty @type field")
	}

	if trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return "", fmt.Errorf("invalid @type string: %w", err)
		}
		if _, ok := reg.IDForName(name); !ok {
			return "", fmt.Errorf("unknown constructor %q", name)
		}
		return name, nil
	}

	var id uint32
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return "", fmt.Errorf("invalid @type id: %w", err)
	}
	name, ok := reg.NameForID(id)
	if !ok {
		return "", fmt.Errorf("unknown constructor id 0x%x", id)
	}
	return name, nil
}
