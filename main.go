package main

import "github.com/uascope/uascope/cmd"

func main() {
	cmd.Execute()
}
