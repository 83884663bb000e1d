package main

import "github.com/jcdickinson/phpdomain/cmd"

func main() {
	cmd.Execute()
}
