package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingwill101/lualike/src/parse"
)

const defaultPkgPath = "./?.lua;./?/init.lua"

// createPackageLib builds the package table for one vm. All require state,
// including the loaded cache, lives in this table so two vms never share
// module identity.
func createPackageLib(vm *VM) *Table {
	pkg := vm.AllocTable(nil, map[any]any{
		"loaded":     vm.AllocTable(nil, nil),
		"preload":    vm.AllocTable(nil, nil),
		"path":       defaultPkgPath,
		"config":     fmt.Sprintf("%c\n%c\n%c\n%c\n%c\n", os.PathSeparator, ';', '?', '!', '-'),
		"searchpath": Fn("package.searchpath", stdPkgSearchPath),
	})
	_ = pkg.Set("searchers", vm.AllocTable([]any{
		Fn("package.searcher.preload", searchPreload),
		Fn("package.searcher.file", searchFile),
	}, nil))
	return pkg
}

func (vm *VM) packageTable() *Table {
	if val, ok := vm.env.hashtable["package"]; ok {
		if tbl, isTbl := val.(*Table); isTbl {
			return tbl
		}
	}
	return nil
}

// searchPreload consults package.preload and yields its entry as the loader.
func searchPreload(vm *VM, args []any) ([]any, error) {
	name := ToString(args[0])
	pkg := vm.packageTable()
	if pkg == nil {
		return []any{"no package table"}, nil
	}
	preload, _ := pkg.Get("preload")
	preloadTbl, isTbl := preload.(*Table)
	if !isTbl {
		return []any{"no package.preload table"}, nil
	}
	loader, err := preloadTbl.Get(name)
	if err != nil {
		return nil, err
	} else if loader == nil {
		return []any{fmt.Sprintf("no field package.preload['%v']", name)}, nil
	}
	return []any{loader, ":preload:"}, nil
}

// searchFile resolves a module on disk: first next to the requiring script,
// then through the package.path templates. Its loader parses the file and runs
// the resulting chunk with (name, path).
func searchFile(vm *VM, args []any) ([]any, error) {
	name := ToString(args[0])
	path := defaultPkgPath
	if pkg := vm.packageTable(); pkg != nil {
		if pval, _ := pkg.Get("path"); pval != nil {
			path = ToString(pval)
		}
	}
	if dir := filepath.Dir(vm.ScriptPath()); dir != "" && dir != "." {
		path = filepath.Join(dir, "?.lua") + ";" + filepath.Join(dir, "?", "init.lua") + ";" + path
	}
	found, diag := searchPath(name, path, ".", string(os.PathSeparator))
	if found == "" {
		return []any{diag}, nil
	}
	loader := Fn("package.loader.file", func(vm *VM, largs []any) ([]any, error) {
		modPath := ToString(largs[1])
		src, err := os.ReadFile(modPath)
		if err != nil {
			return nil, newRuntimeErr(vm, parse.LineInfo{}, err)
		}
		res, err := vm.loadChunk(src, modPath, "bt", false, nil)
		if err != nil {
			return nil, err
		}
		cls, isCls := res[0].(*Closure)
		if !isCls {
			return nil, newRuntimeErr(vm, parse.LineInfo{},
				fmt.Errorf("error loading module '%v' from file '%v': %v", ToString(largs[0]), modPath, res[1]))
		}
		return vm.WithScriptPath(modPath, func() ([]any, error) {
			return vm.Call(cls, largs)
		})
	})
	return []any{loader, found}, nil
}

func searchPath(name, path, sep, rep string) (string, string) {
	if sep != "" {
		name = strings.ReplaceAll(name, sep, rep)
	}
	tried := []string{}
	for _, tmpl := range strings.Split(path, ";") {
		if tmpl == "" {
			continue
		}
		candidate := strings.ReplaceAll(tmpl, "?", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, ""
		}
		tried = append(tried, fmt.Sprintf("no file '%v'", candidate))
	}
	return "", strings.Join(tried, "\n\t")
}

func stdPkgSearchPath(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "package.searchpath", "string", "string", "~string", "~string"); err != nil {
		return nil, err
	}
	sep := "."
	if len(args) > 2 && args[2] != nil {
		sep = ToString(args[2])
	}
	rep := string(os.PathSeparator)
	if len(args) > 3 && args[3] != nil {
		rep = ToString(args[3])
	}
	found, diag := searchPath(ToString(args[0]), ToString(args[1]), sep, rep)
	if found == "" {
		return []any{nil, "\n\t" + diag}, nil
	}
	return []any{found}, nil
}

// stdRequire loads a module once per vm. package.loaded is the cache and the
// circularity guard: a false entry marks a module whose loader is currently
// running, and a circular require observes that false instead of recursing.
func stdRequire(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "require", "string"); err != nil {
		return nil, err
	}
	name := ToString(args[0])
	pkg := vm.packageTable()
	if pkg == nil {
		return nil, newRuntimeErr(vm, parse.LineInfo{}, fmt.Errorf("package table is not available"))
	}
	loadedVal, _ := pkg.Get("loaded")
	loaded, isTbl := loadedVal.(*Table)
	if !isTbl {
		return nil, newRuntimeErr(vm, parse.LineInfo{}, fmt.Errorf("package.loaded is not a table"))
	}
	if cached, err := loaded.Get(name); err != nil {
		return nil, err
	} else if cached != nil {
		return []any{cached}, nil
	}

	loader, loaderData, diags, err := vm.findLoader(pkg, name)
	if err != nil {
		return nil, err
	} else if loader == nil {
		return nil, newRuntimeErr(vm, parse.LineInfo{},
			fmt.Errorf("module '%v' not found:\n\t%v", name, strings.Join(diags, "\n\t")))
	}

	// Mark in-progress before running the loader so a circular require
	// observes false rather than rerunning the module body.
	if err := loaded.Set(name, false); err != nil {
		return nil, err
	}
	res, err := vm.Call(loader, []any{name, loaderData})
	if err != nil {
		_ = loaded.Set(name, nil)
		return nil, err
	}
	var result any = true
	if len(res) > 0 && res[0] != nil {
		result = res[0]
	}
	if err := loaded.Set(name, result); err != nil {
		return nil, err
	}
	return []any{result, loaderData}, nil
}

func (vm *VM) findLoader(pkg *Table, name string) (any, any, []string, error) {
	searchersVal, _ := pkg.Get("searchers")
	searchers, isTbl := searchersVal.(*Table)
	if !isTbl {
		return nil, nil, nil, newRuntimeErr(vm, parse.LineInfo{}, fmt.Errorf("package.searchers is not a table"))
	}
	diags := []string{}
	for _, searcher := range searchers.val {
		if searcher == nil {
			continue
		}
		res, err := vm.Call(searcher, []any{name})
		if err != nil {
			return nil, nil, nil, err
		}
		if len(res) == 0 || res[0] == nil {
			continue
		}
		if isCallable(res[0]) {
			var data any
			if len(res) > 1 {
				data = res[1]
			}
			return res[0], data, nil, nil
		}
		if msg, isStr := res[0].(string); isStr {
			diags = append(diags, msg)
		}
	}
	return nil, nil, diags, nil
}
