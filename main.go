package main

import "github.com/KaramelBytes/usageql-cli/cmd"

func main() {
	cmd.Execute()
}
