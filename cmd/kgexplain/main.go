package main

import "github.com/DrSkyle/kgexplain/cmd/kgexplain/commands"

func main() {
	commands.Execute()
}
