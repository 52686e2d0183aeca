package main

import "bienestar/cli"

func main() {
	cli.Execute()
}
