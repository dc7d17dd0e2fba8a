package main

import "github.com/bookwell/engine/cmd"

func main() {
	cmd.Execute()
}
