// Command geminiassist runs the Gemini consultation MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/geminiassist/geminiassist/cmd/geminiassist/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
