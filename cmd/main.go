// cmd/main.go
package main

import cmd "github.com/mwiater/solverbench/cmd/solverbench"

// main starts the solverbench CLI by delegating to the cobra root command.
func main() {
	cmd.Execute()
}
