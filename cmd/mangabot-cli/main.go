package main

import "github.com/tyburd/mangabot/cmd/mangabot-cli/command"

func main() {
	command.Execute()
}
