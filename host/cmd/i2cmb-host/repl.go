package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/shlex"
)

// repl reads command lines until EOF or quit. Command errors are printed
// and the loop continues.
func repl(r remote, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(line) == 0 {
			continue
		}

		switch line[0] {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			printHelp(out)
			continue
		}

		if err := execute(r, out, line); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Available commands:")
	for _, cmd := range commandTable {
		fmt.Fprintf(out, "  %-26s %s\n", cmd.name+" "+cmd.args, cmd.usage)
	}
	fmt.Fprintf(out, "  %-26s %s\n", "help", "show this help")
	fmt.Fprintf(out, "  %-26s %s\n", "quit", "leave")
}
