package main

import (
	"encoding/json"
	"io"
	"reflect"
)

// writeJSON prints v indented. Nil slices and maps print as [] and {}.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(emptyIfNil(v), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func emptyIfNil(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Slice && rv.IsNil():
		return reflect.MakeSlice(rv.Type(), 0, 0).Interface()
	case rv.Kind() == reflect.Map && rv.IsNil():
		return reflect.MakeMap(rv.Type()).Interface()
	}
	return v
}
