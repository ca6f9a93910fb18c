package main

import "github.com/kozaktomas/face-matcher/cmd"

func main() {
	cmd.Execute()
}
