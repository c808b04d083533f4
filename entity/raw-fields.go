package entity

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// rawFields keeps the object members a type does not model so that values
// owned by the flow engine survive a decode/encode cycle untouched.
type rawFields map[string]json.RawMessage

var knownKeysCache sync.Map

func knownKeys(t reflect.Type) map[string]struct{} {
	if v, ok := knownKeysCache.Load(t); ok {
		return v.(map[string]struct{})
	}
	keys := make(map[string]struct{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		keys[name] = struct{}{}
	}
	knownKeysCache.Store(t, keys)
	return keys
}

// decodeWithRaw decodes data into target (a pointer to an alias struct without
// custom methods) and returns the members target does not declare.
func decodeWithRaw(data []byte, target any) (rawFields, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := knownKeys(reflect.TypeOf(target).Elem())
	var extra rawFields
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(rawFields)
		}
		extra[k] = v
	}
	return extra, nil
}

// encodeWithRaw encodes source (an alias struct) and merges extra members back
// in. Declared fields win over extra members with the same key.
func encodeWithRaw(source any, extra rawFields) ([]byte, error) {
	data, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}
