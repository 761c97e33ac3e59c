package main

import "github.com/jpoley/scantriage/cmd"

func main() {
	cmd.Execute()
}
