package main

import "github.com/clustream-io/clustream/cmd"

func main() {
	cmd.Execute()
}
