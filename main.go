package main

import "ragdesk/cmd"

func main() {
	cmd.Execute()
}
