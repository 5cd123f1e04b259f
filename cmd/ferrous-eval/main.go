// ferrous-eval is a standalone CLI for exercising the Lua engine without
// a running server: run a file, an inline expression, or a REPL, all
// against an in-process storage.Memory engine.
//
// Grounded on paserati's cmd/paserati/main.go: the flag layout
// (-e for an inline expression, a single positional file argument,
// otherwise a REPL) and the file/expr/repl dispatch shape are carried
// over directly, narrowed to Ferrous's own driver (pkg/executor)
// instead of paserati's pkg/driver.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iGentAI/ferrous/pkg/executor"
	"github.com/iGentAI/ferrous/pkg/resource"
	"github.com/iGentAI/ferrous/pkg/resp"
	"github.com/iGentAI/ferrous/pkg/storage"
)

func main() {
	exprFlag := flag.String("e", "", "Run the given script expression and exit")
	keysFlag := flag.String("keys", "", "Comma-separated KEYS values")
	argvFlag := flag.String("argv", "", "Comma-separated ARGV values")
	flag.Parse()

	eng := storage.NewMemory()
	exec := executor.New(eng, resource.Limits{
		MaxInstructions: 100_000_000,
		MaxCallDepth:    200,
		CheckInterval:   resource.DefaultCheckInterval,
	}, 4, nil)

	keys := splitNonEmpty(*keysFlag)
	argv := splitNonEmpty(*argvFlag)

	if *exprFlag != "" {
		runAndPrint(exec, *exprFlag, keys, argv)
		return
	}

	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: ferrous-eval [script.lua] or ferrous-eval -e \"expression\"")
		os.Exit(64)
	} else if flag.NArg() == 1 {
		source, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s: %s\n", flag.Arg(0), err)
			os.Exit(70)
		}
		runAndPrint(exec, string(source), keys, argv)
	} else {
		repl(exec, keys, argv)
	}
}

func runAndPrint(exec *executor.Executor, source string, keys, argv []string) {
	frame := exec.Eval(source, keys, argv)
	printFrame(frame)
	if frame.Type == resp.TypeError {
		os.Exit(70)
	}
}

func repl(exec *executor.Executor, keys, argv []string) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("ferrous-eval (Ctrl+D to exit)")
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nbye")
				return
			}
			fmt.Fprintf(os.Stderr, "read error: %s\n", err)
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		printFrame(exec.Eval(line, keys, argv))
	}
}

func printFrame(f resp.Frame) {
	switch f.Type {
	case resp.TypeError:
		fmt.Printf("(error) %s\n", f.Str)
	case resp.TypeSimpleString:
		fmt.Printf("%s\n", f.Str)
	case resp.TypeBulkString:
		if f.Null {
			fmt.Println("(nil)")
		} else {
			fmt.Printf("%q\n", f.Str)
		}
	case resp.TypeInteger:
		fmt.Printf("(integer) %d\n", f.Num)
	case resp.TypeArray:
		if f.Null {
			fmt.Println("(nil)")
			return
		}
		for i, item := range f.Array {
			fmt.Printf("%d) ", i+1)
			printFrame(item)
		}
	default:
		fmt.Println("(nil)")
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
