package main

import "github.com/mcoot/shrubbery/internal/cli"

func main() {
	cli.Execute()
}
