package main

import (
	"fmt"
	"reflect"

	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/lexer"
)

func dumpTokens(src, filename string) error {
	toks, err := lexer.Tokenize(src, filename)
	if err != nil {
		return err
	}
	for _, tok := range toks {
		fmt.Println(tok.String())
	}
	return nil
}

// dumpProgram prints the parsed AST. There is no Stringer on ast.Decl/Stmt/
// Expr (only on the Type implementors), so this walks every node's exported
// fields by reflection the way go/ast.Print walks a go/ast tree.
func dumpProgram(prog *ast.Program) {
	dumpValue(reflect.ValueOf(prog), 0)
}

func dumpValue(v reflect.Value, depth int) {
	indent := func() { fmt.Print(pad(depth)) }

	if !v.IsValid() {
		indent()
		fmt.Println("nil")
		return
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			indent()
			fmt.Println("nil")
			return
		}
		dumpValue(v.Elem(), depth)
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			indent()
			fmt.Println("[]")
			return
		}
		for i := 0; i < v.Len(); i++ {
			indent()
			fmt.Printf("[%d]\n", i)
			dumpValue(v.Index(i), depth+1)
		}
	case reflect.Struct:
		indent()
		fmt.Println(v.Type().Name())
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue // unexported, e.g. ast.base/exprBase
			}
			fv := v.Field(i)
			switch fv.Kind() {
			case reflect.Struct, reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Array:
				indent()
				fmt.Printf("  %s:\n", f.Name)
				dumpValue(fv, depth+2)
			default:
				indent()
				fmt.Printf("  %s: %v\n", f.Name, fv.Interface())
			}
		}
	default:
		indent()
		fmt.Printf("%v\n", v.Interface())
	}
}

func pad(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
