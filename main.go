// File: main.go
package main

import "github.com/xkilldash9x/kosher-cli/cmd"

func main() {
	cmd.Execute()
}
