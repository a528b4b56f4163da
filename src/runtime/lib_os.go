package runtime

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/kingwill101/lualike/src/parse"
)

// createOSLib builds the os table. The clock epoch is captured per vm rather
// than at process start so embedded vms measure their own lifetime.
func createOSLib(vm *VM) *Table {
	startTime := time.Now()
	lib := vm.AllocTable(nil, map[any]any{
		"clock": Fn("os.clock", func(_ *VM, args []any) ([]any, error) {
			return []any{time.Since(startTime).Seconds()}, nil
		}),
		"date":     Fn("os.date", stdOSDate),
		"difftime": Fn("os.difftime", stdOSDifftime),
		"exit":     Fn("os.exit", stdOSExit),
		"getenv":   Fn("os.getenv", stdOSGetenv),
		"remove":   Fn("os.remove", stdOSRemove),
		"rename":   Fn("os.rename", stdOSRename),
		"time":     Fn("os.time", stdOSTime),
		"tmpname":  Fn("os.tmpname", stdOSTmpname),
	})
	return lib
}

// stdOSExit surfaces as an exit signal instead of calling os.Exit so that the
// host decides when the process actually dies.
func stdOSExit(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "os.exit", "~boolean|number"); err != nil {
		return nil, err
	}
	code := 0
	if len(args) > 0 {
		switch statArg := args[0].(type) {
		case bool:
			if !statArg {
				code = 1
			}
		default:
			code = int(toInt(args[0]))
		}
	}
	return nil, ExitSignal(code)
}

func stdOSGetenv(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "os.getenv", "string"); err != nil {
		return nil, err
	}
	val, found := os.LookupEnv(args[0].(string))
	if !found {
		return []any{nil}, nil
	}
	return []any{val}, nil
}

func stdOSRemove(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "os.remove", "string"); err != nil {
		return nil, err
	}
	if err := os.Remove(args[0].(string)); err != nil {
		return []any{nil, err.Error()}, nil
	}
	return []any{true}, nil
}

func stdOSRename(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "os.rename", "string", "string"); err != nil {
		return nil, err
	}
	if err := os.Rename(args[0].(string), args[1].(string)); err != nil {
		return []any{nil, err.Error()}, nil
	}
	return []any{true}, nil
}

func stdOSTmpname(_ *VM, args []any) ([]any, error) {
	return []any{filepath.Join(os.TempDir(), strconv.Itoa(int(rand.Uint32())))}, nil
}

func stdOSTime(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "os.time", "~table"); err != nil {
		return nil, err
	}
	if len(args) == 0 || args[0] == nil {
		return []any{time.Now().Unix()}, nil
	}
	timeTable := args[0].(*Table).hashtable
	for _, field := range []string{"year", "month", "day"} {
		if timeTable[field] == nil {
			return nil, newRuntimeErr(vm, parse.LineInfo{},
				fmt.Errorf("field '%v' missing in the time table", field))
		}
	}
	t := time.Date(
		int(toInt(timeTable["year"])),
		time.Month(toInt(timeTable["month"])),
		int(toInt(timeTable["day"])),
		int(toIntWithDefault(timeTable["hour"], 12)),
		int(toIntWithDefault(timeTable["min"], 0)),
		int(toIntWithDefault(timeTable["sec"], 0)),
		0, time.Local,
	)
	return []any{t.Unix()}, nil
}

func stdOSDifftime(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "os.difftime", "number", "number"); err != nil {
		return nil, err
	}
	return []any{toFloat(args[0]) - toFloat(args[1])}, nil
}

func stdOSDate(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "os.date", "~string", "~number"); err != nil {
		return nil, err
	}
	format := "%c"
	if len(args) > 0 && args[0] != nil {
		format = args[0].(string)
	}
	fmtTime := time.Now()
	if len(args) > 1 && args[1] != nil {
		fmtTime = time.Unix(toInt(args[1]), 0)
	}
	if strings.HasPrefix(format, "!") {
		fmtTime = fmtTime.UTC()
	}
	format = strings.TrimPrefix(format, "!")
	if strings.TrimSpace(format) == "*t" {
		tbl := vm.AllocTable(nil, map[any]any{
			"year":  int64(fmtTime.Year()),
			"month": int64(fmtTime.Month()),
			"day":   int64(fmtTime.Day()),
			"hour":  int64(fmtTime.Hour()),
			"min":   int64(fmtTime.Minute()),
			"sec":   int64(fmtTime.Second()),
			"wday":  int64(fmtTime.Weekday() + 1),
			"yday":  int64(fmtTime.YearDay()),
			"isdst": fmtTime.IsDST(),
		})
		return []any{tbl}, nil
	}
	strf, err := strftime.New(format)
	if err != nil {
		return nil, newRuntimeErr(vm, parse.LineInfo{}, fmt.Errorf("invalid time format '%v'", format))
	}
	return []any{strf.FormatString(fmtTime)}, nil
}

func toIntWithDefault(val any, def int64) int64 {
	if val == nil {
		return def
	}
	return toInt(val)
}
