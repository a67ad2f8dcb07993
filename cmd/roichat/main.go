package main

import "github.com/bz888/roichat/cmd"

func main() {
	cmd.Execute()
}
