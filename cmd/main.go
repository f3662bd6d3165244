package main

import (
	"document-chat/internal/commands"
)

func main() {
	commands.Execute()
}
