package main

import "github.com/loothound/loothound/cmd"

func main() {
	cmd.Execute()
}
