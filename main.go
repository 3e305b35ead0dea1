package main

import "lore-machine/cmd"

func main() {
	cmd.Execute()
}
