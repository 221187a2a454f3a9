package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// MaxStringSize bounds strings built by the string and table helpers and
// the encoded result body. A single builtin call runs to completion before
// the timeout can interrupt it, so these calls are checked up front.
const MaxStringSize = 4 << 20

// registryMaxSize bounds the Lua value stack of one state.
const registryMaxSize = 256 * 1024

// installLimits replaces the builtins whose output size is chosen by the
// script. The string metatable shares the "string" table, so method calls
// such as s:rep(n) are covered too.
func installLimits(L *lua.LState) {
	if strTbl, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable); ok {
		strTbl.RawSetString("rep", L.NewFunction(limitedRep))
		if gsub, ok := strTbl.RawGetString("gsub").(*lua.LFunction); ok {
			strTbl.RawSetString("gsub", L.NewFunction(limitedGsub(gsub)))
		}
	}
	if tabTbl, ok := L.GetGlobal(lua.TabLibName).(*lua.LTable); ok {
		if concat, ok := tabTbl.RawGetString("concat").(*lua.LFunction); ok {
			tabTbl.RawSetString("concat", L.NewFunction(limitedConcat(concat)))
		}
	}
}

func checkSize(L *lua.LState, fn string, size float64) {
	if size > MaxStringSize {
		L.RaiseError("%s: result would exceed %d bytes", fn, MaxStringSize)
	}
}

// limitedRep is string.rep(s, n [, sep]) with a size check.
func limitedRep(L *lua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	sep := L.OptString(3, "")
	if n <= 0 {
		L.Push(lua.LString(""))
		return 1
	}
	checkSize(L, "string.rep", float64(len(s))*float64(n)+float64(len(sep))*float64(n-1))

	buf := make([]byte, 0, len(s)*n+len(sep)*(n-1))
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, sep...)
		}
		buf = append(buf, s...)
	}
	L.Push(lua.LString(buf))
	return 1
}

// limitedGsub rejects string replacements that could grow past the limit:
// every byte of the subject may be replaced once, plus one empty match.
func limitedGsub(orig *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		s := L.CheckString(1)
		if repl, ok := L.Get(3).(lua.LString); ok {
			checkSize(L, "string.gsub", float64(len(s)+1)*float64(len(repl)+1))
		}
		return callThrough(L, orig)
	}
}

// limitedConcat sums the element sizes before table.concat joins them.
func limitedConcat(orig *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		sep := L.OptString(2, "")
		n := tbl.Len()
		total := float64(len(sep)) * float64(max(n-1, 0))
		for i := 1; i <= n; i++ {
			total += float64(len(lua.LVAsString(tbl.RawGetInt(i))))
		}
		checkSize(L, "table.concat", total)
		return callThrough(L, orig)
	}
}

// callThrough invokes orig with the current arguments and returns all of
// its results.
func callThrough(L *lua.LState, orig *lua.LFunction) int {
	top := L.GetTop()
	L.Push(orig)
	for i := 1; i <= top; i++ {
		L.Push(L.Get(i))
	}
	L.Call(top, lua.MultRet)
	return L.GetTop() - top
}

func checkResultSize(body []byte) error {
	if len(body) > MaxStringSize {
		return &Error{Message: fmt.Sprintf("result.body exceeds %d bytes", MaxStringSize)}
	}
	return nil
}
