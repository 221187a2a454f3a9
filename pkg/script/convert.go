package script

import (
	"encoding/json"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

// maxDepth bounds table nesting when converting script values, which also
// stops self-referencing tables.
const maxDepth = 64

// toLua converts a decoded JSON value into a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.CreateTable(len(val), 0)
		for _, item := range val {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// toResult validates the value returned by a script.
func toResult(lv lua.LValue) (*Result, error) {
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("script must return a table, got %s", lv.Type())}
	}

	res := &Result{Headers: map[string]string{}}

	num, ok := tbl.RawGetString("status").(lua.LNumber)
	if !ok {
		return nil, &Error{Message: "result.status must be a number"}
	}
	f := float64(num)
	if f != math.Trunc(f) || f < 100 || f > 599 {
		return nil, &Error{Message: fmt.Sprintf("result.status must be an integer between 100-599, got %v", num)}
	}
	res.Status = int(f)

	switch h := tbl.RawGetString("headers").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		var herr error
		h.ForEach(func(k, v lua.LValue) {
			if herr != nil {
				return
			}
			key, ok := k.(lua.LString)
			if !ok {
				herr = &Error{Message: fmt.Sprintf("result.headers keys must be strings, got %s", k.Type())}
				return
			}
			switch val := v.(type) {
			case lua.LString:
				res.Headers[string(key)] = string(val)
			case lua.LNumber:
				res.Headers[string(key)] = val.String()
			default:
				herr = &Error{Message: fmt.Sprintf("result.headers[%q] must be a string or number, got %s", string(key), v.Type())}
			}
		})
		if herr != nil {
			return nil, herr
		}
	default:
		return nil, &Error{Message: "result.headers must be a table"}
	}

	switch b := tbl.RawGetString("body").(type) {
	case *lua.LNilType:
	case lua.LString:
		res.Text = true
		res.Body, _ = json.Marshal(string(b))
	case *lua.LTable, lua.LNumber, lua.LBool:
		v, err := fromLua(b, 0)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("result.body: %v", err)}
		}
		res.Body = data
	default:
		return nil, &Error{Message: fmt.Sprintf("result.body must be a string or table, got %s", b.Type())}
	}
	if err := checkResultSize(res.Body); err != nil {
		return nil, err
	}

	return res, nil
}

// fromLua converts a Lua value into something encoding/json can marshal.
// Tables with keys 1..n are arrays, other tables are objects with string
// keys. An empty table encodes as an object.
func fromLua(lv lua.LValue, depth int) (any, error) {
	if depth > maxDepth {
		return nil, &Error{Message: "result.body is nested too deeply"}
	}
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &Error{Message: "result.body contains a non-finite number"}
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		return tableValue(v, depth)
	default:
		return nil, &Error{Message: fmt.Sprintf("result.body cannot contain a %s", lv.Type())}
	}
}

func tableValue(t *lua.LTable, depth int) (any, error) {
	n := t.MaxN()
	count := 0
	allStrings := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if _, ok := k.(lua.LString); !ok {
			allStrings = false
		}
	})

	if n > 0 && count == n {
		arr := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			item, err := fromLua(t.RawGetInt(i), depth+1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		return arr, nil
	}
	if !allStrings {
		return nil, &Error{Message: "result.body tables must be arrays or have string keys"}
	}

	keys := make([]string, 0, count)
	t.ForEach(func(k, _ lua.LValue) {
		keys = append(keys, string(k.(lua.LString)))
	})
	obj := make(map[string]any, len(keys))
	for _, k := range keys {
		item, err := fromLua(t.RawGetString(k), depth+1)
		if err != nil {
			return nil, err
		}
		obj[k] = item
	}
	return obj, nil
}
