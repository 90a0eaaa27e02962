package main

import "github.com/vexfs-project/vexfs-core/cmd"

func main() {
	cmd.Execute()
}
